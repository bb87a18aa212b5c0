package config

import "context"

// Loader abstracts the configuration source. The production implementation
// reads HCL files; tests may supply a Model directly.
type Loader interface {
	// Load reads and merges all configuration found under the given paths
	// into a single validated Model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
