// Package config defines the format-agnostic configuration model the rest of
// the application consumes, decoupled from the HCL files it is loaded from.
package config

import (
	"errors"
	"fmt"

	"github.com/vk/installgrid/internal/matrix"
)

// Model is the root of the loaded configuration.
type Model struct {
	Verify *Verify
	Status *Status
	Tools  *Tools
	Notify *Notify
}

// Verify configures the installation-verification matrix.
type Verify struct {
	// Package is the import name used by the post-install smoke test.
	Package string
	// Repository is the canonical clone URL, used when the trigger event
	// carries no head repository.
	Repository string
	// Axes are the matrix dimensions. Validation happens at expansion time.
	Axes matrix.AxisSet
	// Requirements is the secondary dependency file the local install
	// method applies before the package itself.
	Requirements string
	// SourcePath is the working copy location for local installs.
	SourcePath string
	// TestPath and TestFilter configure the per-cell test run.
	TestPath   string
	TestFilter string
}

// Status configures the non-matrixed lint/test pipeline.
type Status struct {
	// PythonVersion pins the fixed reference environment.
	PythonVersion string
	Requirements  string
	Lint          Lint
	Tests         Tests
}

// Lint configures the static analysis check.
type Lint struct {
	Command []string
	Ruleset string
	Targets []string
}

// Tests configures the status pipeline's test check.
type Tests struct {
	Filter string
	Path   string
}

// Tools holds the argv templates for the external collaborators.
type Tools struct {
	Provisioner  []string
	Checkout     []string
	RuntimeSetup []string
}

// Notify configures the optional report webhook.
type Notify struct {
	URL    string
	Secret string
}

// Validate checks cross-field consistency that the loader cannot express.
func (m *Model) Validate() error {
	if m.Verify == nil && m.Status == nil {
		return errors.New("configuration defines neither a verify nor a status block")
	}
	if m.Verify != nil {
		if m.Verify.Package == "" {
			return errors.New("verify block is missing the package import name")
		}
		if m.Tools == nil || len(m.Tools.Provisioner) == 0 {
			return errors.New("verify block requires a provisioner command in the tools block")
		}
	}
	if m.Status != nil {
		if m.Status.PythonVersion == "" {
			return errors.New("status block is missing the reference python version")
		}
		if m.Tools == nil || len(m.Tools.Checkout) == 0 || len(m.Tools.RuntimeSetup) == 0 {
			return errors.New("status block requires checkout and runtime setup commands in the tools block")
		}
	}
	if m.Notify != nil && m.Notify.URL == "" {
		return fmt.Errorf("notify block is present but has no url")
	}
	return nil
}
