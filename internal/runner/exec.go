package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Exit code reported when the command runs past its timeout, matching
// the shell convention for SIGTERM-after-timeout.
const timeoutExitCode = 124

// newExecCapability builds the one and only process-spawn routine. It is
// package-private and bound to a Runner in New; holding the Runner is
// the only way to execute anything, which makes "single execution point"
// a structural property instead of a convention.
func newExecCapability(timeout time.Duration) execFunc {
	return func(ctx context.Context, command string) (int, string) {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := shellCommand(runCtx, command)
		out, err := cmd.CombinedOutput()
		if runCtx.Err() == context.DeadlineExceeded {
			return timeoutExitCode, fmt.Sprintf("command timed out after %s", timeout)
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), string(out)
			}
			return 1, fmt.Sprintf("execution error: %v", err)
		}
		return 0, string(out)
	}
}
