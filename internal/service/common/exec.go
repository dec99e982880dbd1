//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Runner starts an external program and waits for it to exit.
// A non-zero exit status is reported as an error.
type Runner interface {
	Run(ctx context.Context, dir, program string, args ...string) error
}

// LookPathFunc resolves a program name to an executable path.
type LookPathFunc func(program string) (string, error)

// ExecRunner runs programs with os/exec, streaming their output.
type ExecRunner struct {
	// Stdout receives the program's standard output. Nil means os.Stdout.
	Stdout io.Writer
	// Stderr receives the program's standard error. Nil means os.Stderr.
	Stderr io.Writer
}

// NewExecRunner returns a runner attached to the process output streams.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes program with args in dir. Arguments are passed as-is, no shell is involved.
func (r *ExecRunner) Run(ctx context.Context, dir, program string, args ...string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	return cmd.Run()
}

// ExitCode extracts the exit status from a Runner error, or -1 when the
// program did not run to completion.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}
