// Package toolexec is the single seam through which every external
// collaborator is invoked: the environment provisioner, the checkout tool,
// the package-index and dependency-lock tools, the test runner and the
// linter. All of them are opaque argv invocations from the orchestrator's
// point of view.
package toolexec

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyArgv is returned when a caller builds an invocation with no command.
var ErrEmptyArgv = errors.New("toolexec: empty argv")

// Result captures one finished tool invocation. Output holds combined stdout
// and stderr; ExitCode is the process exit status.
type Result struct {
	Argv     []string
	ExitCode int
	Output   string
	Duration time.Duration
}

// Command returns the invocation as a single shell-like string, used in
// diagnostics so a failure can be reproduced locally.
func (r *Result) Command() string {
	return strings.Join(r.Argv, " ")
}

// Tail returns the last n lines of the tool output, trimmed. Diagnostics
// carry the tail rather than the full output to keep reports readable.
func (r *Result) Tail(n int) string {
	out := strings.TrimRight(r.Output, "\n")
	if out == "" {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Invoker runs external tools. Implementations must honor ctx cancellation
// by interrupting the running process.
type Invoker interface {
	// Run executes argv in dir (empty dir means the current directory).
	// A non-zero exit status is not an error: it is reported through
	// Result.ExitCode. The returned error covers failures to run at all,
	// including context cancellation.
	Run(ctx context.Context, dir string, argv []string) (*Result, error)
}

// ExecInvoker is the production Invoker backed by os/exec.
type ExecInvoker struct {
	// Env, when non-nil, replaces the child process environment.
	Env []string
}

// Run implements Invoker.
func (e *ExecInvoker) Run(ctx context.Context, dir string, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if e.Env != nil {
		cmd.Env = e.Env
	}

	out, err := cmd.CombinedOutput()
	res := &Result{
		Argv:     argv,
		Output:   string(out),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	return res, nil
}
