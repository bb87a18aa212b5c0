// Package hcl implements the production config.Loader: it discovers .hcl
// files, decodes them into the wire schema and translates the result into
// the agnostic configuration model.
package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/installgrid/internal/config"
	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/fsutil"
	"github.com/vk/installgrid/internal/schema"
)

// Loader reads HCL configuration files.
type Loader struct{}

// NewLoader returns a ready Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load implements config.Loader. Files are merged in discovery order; each
// top-level block may appear in at most one file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to find config files in %s: %w", path, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl configuration found under %v", paths)
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	parser := hclparse.NewParser()
	merged := &schema.File{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}

		var parsed schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}
		if err := merge(merged, &parsed, file); err != nil {
			return nil, err
		}
	}

	model, err := l.translate(merged)
	if err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded and translated into unified model.")
	return model, nil
}

// merge folds one parsed file into the accumulated schema, rejecting
// duplicate top-level blocks across files.
func merge(dst, src *schema.File, file string) error {
	if src.Verify != nil {
		if dst.Verify != nil {
			return fmt.Errorf("duplicate verify block in %s", file)
		}
		dst.Verify = src.Verify
	}
	if src.Status != nil {
		if dst.Status != nil {
			return fmt.Errorf("duplicate status block in %s", file)
		}
		dst.Status = src.Status
	}
	if src.Tools != nil {
		if dst.Tools != nil {
			return fmt.Errorf("duplicate tools block in %s", file)
		}
		dst.Tools = src.Tools
	}
	if src.Notify != nil {
		if dst.Notify != nil {
			return fmt.Errorf("duplicate notify block in %s", file)
		}
		dst.Notify = src.Notify
	}
	return nil
}
