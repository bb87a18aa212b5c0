package installer

import (
	"context"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/environ"
)

// LocalSource installs the package from a working copy already present on
// disk. The checkout itself is performed by an external collaborator before
// the matrix runs. A declared secondary requirements file, when configured,
// is installed before the primary package.
type LocalSource struct {
	// Requirements is the secondary dependency file, e.g. "requirements.txt".
	// Empty means the package's own metadata is trusted to pull everything.
	Requirements string
	// Path is the working copy location relative to the environment's
	// working directory. Defaults to "." when empty.
	Path string
}

// Name implements Method.
func (m *LocalSource) Name() string { return MethodLocal }

// Install implements Method. ref is ignored: the revision under test is
// whatever the checkout step placed on disk.
func (m *LocalSource) Install(ctx context.Context, env *environ.Environment, ref string) error {
	logger := ctxlog.FromContext(ctx)

	if m.Requirements != "" {
		logger.Debug("Installing secondary dependency file.", "file", m.Requirements)
		if err := runInstall(ctx, env, "python", "-m", "pip", "install", "-r", m.Requirements); err != nil {
			return err
		}
	}

	path := m.Path
	if path == "" {
		path = "."
	}
	logger.Debug("Installing package from working copy.", "path", path)
	return runInstall(ctx, env, "python", "-m", "pip", "install", path)
}
