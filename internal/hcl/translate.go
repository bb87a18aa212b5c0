package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/installgrid/internal/config"
	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/schema"
)

// Defaults applied when optional expressions are absent or null.
const (
	defaultSourcePath = "."
	defaultTestFilter = "not slow"
	defaultTestPath   = "tests"
)

// translate converts the merged HCL schema into the agnostic model.
func (l *Loader) translate(s *schema.File) (*config.Model, error) {
	m := &config.Model{}

	if s.Verify != nil {
		v, err := translateVerify(s.Verify)
		if err != nil {
			return nil, err
		}
		m.Verify = v
	}
	if s.Status != nil {
		st, err := translateStatus(s.Status)
		if err != nil {
			return nil, err
		}
		m.Status = st
	}
	if s.Tools != nil {
		m.Tools = &config.Tools{
			Provisioner:  s.Tools.Provisioner,
			Checkout:     s.Tools.Checkout,
			RuntimeSetup: s.Tools.RuntimeSetup,
		}
	}
	if s.Notify != nil {
		m.Notify = &config.Notify{URL: s.Notify.URL, Secret: s.Notify.Secret}
	}
	return m, nil
}

func translateVerify(s *schema.Verify) (*config.Verify, error) {
	if s.Matrix == nil {
		return nil, fmt.Errorf("verify block is missing its matrix block")
	}

	sourcePath, err := stringFromExpr(s.SourcePath, defaultSourcePath)
	if err != nil {
		return nil, fmt.Errorf("invalid source_path: %w", err)
	}
	testFilter, err := stringFromExpr(s.TestFilter, defaultTestFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid test_filter: %w", err)
	}
	testPath := s.TestPath
	if testPath == "" {
		testPath = defaultTestPath
	}

	return &config.Verify{
		Package:    s.Package,
		Repository: s.Repository,
		Axes: matrix.AxisSet{
			OperatingSystems: s.Matrix.OS,
			RuntimeVersions:  s.Matrix.PythonVersions,
			InstallMethods:   s.Matrix.Methods,
		},
		Requirements: s.Requirements,
		SourcePath:   sourcePath,
		TestPath:     testPath,
		TestFilter:   testFilter,
	}, nil
}

func translateStatus(s *schema.Status) (*config.Status, error) {
	st := &config.Status{
		PythonVersion: s.PythonVersion,
		Requirements:  s.Requirements,
	}
	if s.Lint != nil {
		st.Lint = config.Lint{
			Command: s.Lint.Command,
			Ruleset: s.Lint.Ruleset,
			Targets: s.Lint.Targets,
		}
	}
	if s.Tests != nil {
		filter, err := stringFromExpr(s.Tests.Filter, defaultTestFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid tests filter: %w", err)
		}
		st.Tests = config.Tests{Filter: filter, Path: s.Tests.Path}
	}
	return st, nil
}

// stringFromExpr evaluates an optional expression attribute. A nil or null
// expression yields the default.
func stringFromExpr(expr hcl.Expression, def string) (string, error) {
	if expr == nil {
		return def, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() {
		return def, nil
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("expected a string, got %s", val.Type().FriendlyName())
	}
	return val.AsString(), nil
}
