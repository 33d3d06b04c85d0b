package ux

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyler-jewell/claude-code-creeper/internal/state"
)

// RenderStatus prints the daemon, project, and recent-history view.
func RenderStatus(daemon *state.DaemonRecord, ps *state.ProjectState, history []state.AnalysisRecord) {
	if daemon != nil {
		fmt.Printf("%sDaemon:%s   %srunning%s (pid %d, since %s)\n",
			Bold, Reset, Green, Reset, daemon.PID, daemon.StartedAt.Format("2006-01-02 15:04:05"))
		mode := "pull requests"
		if daemon.AutoApply {
			mode = "auto-apply"
		}
		fmt.Printf("%sWatching:%s %s (every %ds, %s)\n", Bold, Reset, daemon.ProjectPath, daemon.Interval, mode)
	} else {
		fmt.Printf("%sDaemon:%s   %snot running%s\n", Bold, Reset, Dim, Reset)
	}

	if ps != nil {
		if !ps.LastAnalysisTime.IsZero() {
			fmt.Printf("%sLast analysis:%s %s (%s ago)\n",
				Bold, Reset, ps.LastAnalysisTime.Format("2006-01-02 15:04:05"),
				roundDuration(time.Since(ps.LastAnalysisTime)))
		} else {
			fmt.Printf("%sLast analysis:%s %snever%s\n", Bold, Reset, Dim, Reset)
		}
		if !ps.NextScheduledTime.IsZero() && ps.NextScheduledTime.After(time.Now()) {
			fmt.Printf("%sNext cycle:%s    ~%s\n", Bold, Reset, ps.NextScheduledTime.Format("15:04:05"))
		}
		if ps.CurrentBranch != "" {
			fmt.Printf("%sLast branch:%s   %s\n", Bold, Reset, ps.CurrentBranch)
		}
		if len(ps.PendingImprovements) > 0 {
			fmt.Printf("\n%sPending improvements:%s\n", Bold, Reset)
			for _, p := range ps.PendingImprovements {
				fmt.Printf("  - %s\n", p)
			}
		}
	}

	if len(history) > 0 {
		fmt.Printf("\n%sRecent cycles:%s\n", Bold, Reset)
		RenderHistory(history)
	}
	fmt.Println()
}

// RenderHistory prints analysis records, most recent first.
func RenderHistory(records []state.AnalysisRecord) {
	for _, rec := range records {
		outcome := fmt.Sprintf("%sno changes%s", Dim, Reset)
		if len(rec.ChangesApplied) > 0 {
			outcome = fmt.Sprintf("%d file(s) changed", len(rec.ChangesApplied))
		}
		if rec.PublishedReference != "" {
			outcome += fmt.Sprintf(" → %s%s%s", Cyan, rec.PublishedReference, Reset)
		}
		fmt.Printf("  %s%s%s  %s\n",
			Dim, rec.Timestamp.Format("2006-01-02 15:04"), Reset, outcome)
		if len(rec.PatternsDetected) > 0 {
			fmt.Printf("      %s%s%s\n", Dim, strings.Join(rec.PatternsDetected, "; "), Reset)
		}
	}
}

func roundDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
