package installer

import (
	"context"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/environ"
)

// Index installs a specific revision of the package directly from its remote
// source-control reference via the package-index tool.
type Index struct{}

// Name implements Method.
func (m *Index) Name() string { return MethodIndex }

// Install implements Method.
func (m *Index) Install(ctx context.Context, env *environ.Environment, ref string) error {
	ctxlog.FromContext(ctx).Debug("Installing package from remote reference.", "ref", ref)
	return runInstall(ctx, env, "python", "-m", "pip", "install", ref)
}
