package installer

import (
	"context"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/environ"
)

// Lockfile installs via the dependency-locking tool: it first pins an
// isolated environment to the target runtime version, then resolves the same
// remote reference through the locking tool's resolver.
type Lockfile struct{}

// Name implements Method.
func (m *Lockfile) Name() string { return MethodLockfile }

// Install implements Method.
func (m *Lockfile) Install(ctx context.Context, env *environ.Environment, ref string) error {
	logger := ctxlog.FromContext(ctx)

	logger.Debug("Pinning locked environment to runtime version.", "python", env.Version)
	if err := runInstall(ctx, env, "pipenv", "--python", env.Version); err != nil {
		return err
	}

	logger.Debug("Resolving remote reference through locking tool.", "ref", ref)
	return runInstall(ctx, env, "pipenv", "install", ref)
}
