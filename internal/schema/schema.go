// Package schema defines the HCL wire structures configuration files decode
// into, before translation into the agnostic config model.
package schema

import "github.com/hashicorp/hcl/v2"

// File is the top-level structure of one .hcl configuration file.
type File struct {
	Verify *Verify `hcl:"verify,block"`
	Status *Status `hcl:"status,block"`
	Tools  *Tools  `hcl:"tools,block"`
	Notify *Notify `hcl:"notify,block"`
}

// Verify is the wire form of the verification matrix block.
type Verify struct {
	Package      string         `hcl:"package"`
	Repository   string         `hcl:"repository,optional"`
	Matrix       *Matrix        `hcl:"matrix,block"`
	Requirements string         `hcl:"requirements,optional"`
	SourcePath   hcl.Expression `hcl:"source_path,optional"`
	TestPath     string         `hcl:"test_path,optional"`
	TestFilter   hcl.Expression `hcl:"test_filter,optional"`
}

// Matrix enumerates the three variation axes.
type Matrix struct {
	OS             []string `hcl:"os"`
	PythonVersions []string `hcl:"python_versions"`
	Methods        []string `hcl:"methods"`
}

// Status is the wire form of the status pipeline block.
type Status struct {
	PythonVersion string `hcl:"python_version"`
	Requirements  string `hcl:"requirements,optional"`
	Lint          *Lint  `hcl:"lint,block"`
	Tests         *Tests `hcl:"tests,block"`
}

// Lint configures the static analysis check.
type Lint struct {
	Command []string `hcl:"command"`
	Ruleset string   `hcl:"ruleset"`
	Targets []string `hcl:"targets,optional"`
}

// Tests configures the status pipeline's test check.
type Tests struct {
	Filter hcl.Expression `hcl:"filter,optional"`
	Path   string         `hcl:"path"`
}

// Tools holds argv templates for the external collaborators.
type Tools struct {
	Provisioner  []string `hcl:"provisioner,optional"`
	Checkout     []string `hcl:"checkout,optional"`
	RuntimeSetup []string `hcl:"runtime_setup,optional"`
}

// Notify is the wire form of the report webhook block.
type Notify struct {
	URL    string `hcl:"url"`
	Secret string `hcl:"secret,optional"`
}
