// Package execx runs external commands attached to the parent's standard
// streams and maps their termination to an exit code.
package execx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result holds the outcome of a finished child process. Code carries the
// exit code to propagate, Err the raw error from the run.
type Result struct {
	Code int
	Err  error
}

// Run executes name with args as a child process that inherits the parent's
// stdin, stdout and stderr. The child's exit code is mapped into the
// returned Result: a regular exit keeps its code, a context deadline maps
// to 124 and any other spawn failure maps to 1.
func Run(ctx context.Context, name string, args ...string) Result {
	if os.Getenv("FLMRCTL_DEBUG") == "1" {
		fmt.Fprintln(os.Stderr, CommandLine(name, args...))
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	code := 0
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			code = 124
		} else if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		} else {
			code = 1
		}
	}
	return Result{Code: code, Err: err}
}

// CommandLine returns the echo line for a command, used for dry runs and
// debug output.
func CommandLine(name string, args ...string) string {
	return "+ " + strings.Join(append([]string{name}, args...), " ")
}

// WithTimeout returns a context that cancels the child process after d.
// A zero duration means no timeout.
func WithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}
