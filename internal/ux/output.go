package ux

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// Info prints a timestamped informational line.
func Info(format string, args ...any) {
	fmt.Printf("%s[%s]%s %s\n", Dim, timestamp(), Reset, fmt.Sprintf(format, args...))
}

// Warnf prints a timestamped warning to stderr.
func Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s[%s]%s %swarning:%s %s\n",
		Dim, timestamp(), Reset, Yellow, Reset, fmt.Sprintf(format, args...))
}

// Errorf prints a timestamped error to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s[%s]%s %serror:%s %s\n",
		Dim, timestamp(), Reset, Red, Reset, fmt.Sprintf(format, args...))
}

// ChangesDetected prints the newly detected change count.
func ChangesDetected(n int) {
	Info("%s%d file(s) changed%s, debounce timer reset", Cyan, n, Reset)
}

// CycleStart prints a cycle banner.
func CycleStart(changed int) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %sAnalysis cycle: %d changed file(s)%s\n",
		Dim, timestamp(), Reset, Bold, changed, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// CycleComplete prints a cycle completion line.
func CycleComplete(duration time.Duration) {
	m := int(duration.Minutes())
	s := int(duration.Seconds()) % 60
	fmt.Printf("%s[%s]%s  %s✓ Cycle complete (%dm %02ds)%s\n",
		Dim, timestamp(), Reset, Green, m, s, Reset)
}

// CycleFail prints a cycle failure line. The daemon keeps running.
func CycleFail(err error) {
	fmt.Printf("%s[%s]%s  %s✗ Cycle failed: %v%s\n",
		Dim, timestamp(), Reset, Red, err, Reset)
}

// Published prints the created review-request reference.
func Published(ref string) {
	fmt.Printf("%s[%s]%s  %s↑ Opened %s%s\n",
		Dim, timestamp(), Reset, Green, ref, Reset)
}

// DryRunPayload prints the instruction payload instead of dispatching it.
func DryRunPayload(prompt string) {
	fmt.Printf("\n%sDry run: instruction payload:%s\n\n%s\n", Bold, Reset, prompt)
}

// AgentOutput prints a bounded excerpt of the agent's captured output.
func AgentOutput(output string) {
	output = strings.TrimSpace(output)
	if output == "" {
		return
	}
	lines := strings.Split(output, "\n")
	const max = 20
	if len(lines) > max {
		lines = lines[len(lines)-max:]
		fmt.Printf("  %s… (showing last %d lines)%s\n", Dim, max, Reset)
	}
	for _, line := range lines {
		fmt.Printf("  %s\n", line)
	}
}
