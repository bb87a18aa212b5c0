// Package environ manages the clean runtime environments that verification
// jobs install into. The actual VM/container machinery is an external
// collaborator reached through the provisioner tool; this package owns the
// lifecycle sequencing: provision, exec-inside, guaranteed single release.
package environ

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/toolexec"
)

// Environment is a scoped resource: a clean runtime for one (os, version)
// pair, owned by exactly one job. Release is guarded so teardown happens at
// most once no matter how many exit paths call it.
type Environment struct {
	ID      string
	OS      string
	Version string
	WorkDir string

	invoker    toolexec.Invoker
	execPrefix []string
	release    func(ctx context.Context) error

	releaseOnce sync.Once
	releaseErr  error
}

// New assembles an Environment. execPrefix is prepended to every argv so that
// commands run inside the provisioned environment rather than on the host;
// release performs the external teardown.
func New(osName, version, workDir string, inv toolexec.Invoker, execPrefix []string, release func(ctx context.Context) error) *Environment {
	return &Environment{
		ID:         uuid.NewString(),
		OS:         osName,
		Version:    version,
		WorkDir:    workDir,
		invoker:    inv,
		execPrefix: execPrefix,
		release:    release,
	}
}

// Exec runs argv inside the environment and returns the finished invocation.
func (e *Environment) Exec(ctx context.Context, argv ...string) (*toolexec.Result, error) {
	full := make([]string, 0, len(e.execPrefix)+len(argv))
	full = append(full, e.execPrefix...)
	full = append(full, argv...)
	return e.invoker.Run(ctx, e.WorkDir, full)
}

// Release tears the environment down. It is safe to call from multiple exit
// paths; only the first call performs the teardown and its error is returned
// to every caller.
func (e *Environment) Release(ctx context.Context) error {
	e.releaseOnce.Do(func() {
		if e.release != nil {
			e.releaseErr = e.release(ctx)
		}
	})
	return e.releaseErr
}

// Provisioner requests clean environments. Provisioning for distinct
// (os, version) pairs must be independent: no shared mutable install cache.
type Provisioner interface {
	Provision(ctx context.Context, osName, version string) (*Environment, error)
}

// ExecProvisioner provisions environments by shelling out to a configured
// provisioner command, e.g. ["igridenv"]. The contract with the tool:
//
//	<cmd> create  --id <id> --os <os> --python <version>
//	<cmd> exec    --id <id> -- <argv...>
//	<cmd> destroy --id <id>
type ExecProvisioner struct {
	Command []string
	Invoker toolexec.Invoker
	WorkDir string
}

// Provision implements Provisioner.
func (p *ExecProvisioner) Provision(ctx context.Context, osName, version string) (*Environment, error) {
	if len(p.Command) == 0 {
		return nil, fmt.Errorf("provisioner command is not configured")
	}

	id := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("envID", id, "os", osName, "python", version)
	logger.Debug("Provisioning environment.")

	createArgv := append(append([]string{}, p.Command...),
		"create", "--id", id, "--os", osName, "--python", version)
	res, err := p.Invoker.Run(ctx, p.WorkDir, createArgv)
	if err != nil {
		return nil, fmt.Errorf("provisioner failed to start: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("provision %s/%s failed: %s (exit %d): %s",
			osName, version, res.Command(), res.ExitCode, res.Tail(5))
	}

	execPrefix := append(append([]string{}, p.Command...), "exec", "--id", id, "--")
	release := func(ctx context.Context) error {
		logger.Debug("Releasing environment.")
		destroyArgv := append(append([]string{}, p.Command...), "destroy", "--id", id)
		res, err := p.Invoker.Run(ctx, p.WorkDir, destroyArgv)
		if err != nil {
			return fmt.Errorf("teardown failed to start: %w", err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("teardown of %s failed (exit %d): %s", id, res.ExitCode, res.Tail(5))
		}
		return nil
	}

	env := New(osName, version, p.WorkDir, p.Invoker, execPrefix, release)
	env.ID = id
	logger.Debug("Environment provisioned.")
	return env, nil
}
