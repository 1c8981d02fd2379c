// Package experiment configures and launches the external FLMR retrieval
// example program as a child process.
package experiment

import (
	"context"
	"fmt"
	"os"

	"github.com/kbvqa/flmrctl/internal/execx"
)

const (
	// DefaultProgram is the interpreter used to launch the example script.
	DefaultProgram = "python"

	// DefaultScript is the retrieval example shipped with the FLMR
	// distribution.
	DefaultScript = "examples/example_use_flmr.py"
)

// Runner launches the retrieval example program.
type Runner struct {
	// Program is the interpreter binary. Defaults to DefaultProgram.
	Program string

	// Script is the example script path. Defaults to DefaultScript.
	Script string

	// DryRun prints the command line to stderr instead of executing it.
	DryRun bool
}

// Run launches the example program with the flags derived from cfg. The
// child inherits the parent's standard streams and its exit code is
// reported in the result; no output is parsed.
func (r *Runner) Run(ctx context.Context, cfg *Config) execx.Result {
	program := r.Program
	if program == "" {
		program = DefaultProgram
	}
	script := r.Script
	if script == "" {
		script = DefaultScript
	}

	argv := append([]string{script}, cfg.Args()...)
	if r.DryRun {
		fmt.Fprintln(os.Stderr, execx.CommandLine(program, argv...))
		return execx.Result{}
	}

	return execx.Run(ctx, program, argv...)
}
