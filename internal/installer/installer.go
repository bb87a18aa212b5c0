// Package installer encapsulates the installation strategies a verification
// job can use: from a local working copy, from the package index against a
// remote VCS reference, or through the dependency-locking tool. Each strategy
// mutates its target environment's package set and nothing else.
package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/installgrid/internal/environ"
)

// Method names for the matrix axis.
const (
	MethodLocal    = "local"
	MethodIndex    = "index"
	MethodLockfile = "lockfile"
)

// Class distinguishes transient infrastructure failures from genuine
// dependency-resolution failures. The distinction is surfaced for operator
// visibility only; nothing retries on it.
type Class string

const (
	ClassTransient  Class = "transient"
	ClassResolution Class = "resolution"
)

// InstallError is the failed outcome of an install attempt.
type InstallError struct {
	Class  Class
	Cmd    string
	Output string
	Err    error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %s", e.Cmd, e.Class, e.Output)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Cmd, e.Class, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Cmd, e.Class)
}

// Unwrap exposes the underlying cause so callers can still detect
// cancellation with errors.Is.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// Method is one installation strategy. Install mutates env's package set;
// ref is the fully qualified VCS reference under test (unused by the local
// strategy, which installs the already-checked-out working copy).
type Method interface {
	Name() string
	Install(ctx context.Context, env *environ.Environment, ref string) error
}

// runInstall executes one install command inside the environment and
// converts any failure into a classified InstallError.
func runInstall(ctx context.Context, env *environ.Environment, argv ...string) error {
	res, err := env.Exec(ctx, argv...)
	if err != nil {
		cmd := strings.Join(argv, " ")
		if res != nil {
			cmd = res.Command()
		}
		return &InstallError{
			Class: ClassTransient,
			Cmd:   cmd,
			Err:   err,
		}
	}
	if res.ExitCode != 0 {
		return &InstallError{
			Class:  Classify(res.Output),
			Cmd:    fmt.Sprintf("%s (exit %d)", res.Command(), res.ExitCode),
			Output: res.Tail(10),
		}
	}
	return nil
}
