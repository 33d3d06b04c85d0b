package agent

import (
	"errors"
	"os/exec"
)

// exitCode separates a process's exit status from failures to run it at all.
// An *exec.ExitError yields the status with a nil error; anything else, such
// as a missing binary or cancelled context, passes through as the error.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
