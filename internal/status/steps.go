package status

import (
	"context"
	"fmt"

	"github.com/vk/installgrid/internal/toolexec"
)

// BuildOptions carries everything needed to assemble the concrete pipeline
// for one change event. Tool fields are argv templates; step-specific
// arguments are appended to them.
type BuildOptions struct {
	WorkDir string

	// Checkout fetches the source plus nested sub-modules.
	Checkout  []string
	CloneURL  string
	SourceRef string

	// RuntimeSetup prepares the reference interpreter.
	RuntimeSetup  []string
	PythonVersion string

	// Requirements is the dependency file installed before the checks run.
	Requirements string

	// Lint: command template, ruleset file, targets.
	LintCommand []string
	LintRuleset string
	LintTargets []string

	// Tests: filter expression and target path.
	TestFilter string
	TestPath   string
}

// BuildSteps assembles the standard status pipeline:
//
//	checkout → setup-python → deps → lint (always-run, needs checkout) → tests
func BuildSteps(inv toolexec.Invoker, opts BuildOptions) []Step {
	run := func(argv ...string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			return runTool(ctx, inv, opts.WorkDir, argv)
		}
	}

	checkoutArgv := append(append([]string{}, opts.Checkout...),
		"--repo", opts.CloneURL, "--ref", opts.SourceRef, "--submodules")

	setupArgv := append(append([]string{}, opts.RuntimeSetup...),
		"--python", opts.PythonVersion)

	lintArgv := append(append([]string{}, opts.LintCommand...),
		"--rcfile", opts.LintRuleset)
	lintArgv = append(lintArgv, opts.LintTargets...)

	testArgv := []string{"python", "-m", "pytest", "-m", opts.TestFilter, opts.TestPath}

	steps := []Step{
		{Name: "checkout", Run: run(checkoutArgv...)},
		{Name: "setup-python", Run: run(setupArgv...)},
	}
	testRequires := []string{"checkout", "setup-python"}
	if opts.Requirements != "" {
		steps = append(steps, Step{
			Name:     "deps",
			Requires: []string{"checkout", "setup-python"},
			Run:      run("python", "-m", "pip", "install", "-r", opts.Requirements),
		})
		testRequires = append(testRequires, "deps")
	}
	steps = append(steps,
		// Lint and tests are independent checks: each runs whenever its own
		// hard preconditions passed, regardless of how the other check ended.
		Step{Name: StepLint, AlwaysRun: true, Requires: []string{"checkout"}, Run: run(lintArgv...)},
		Step{Name: StepTests, AlwaysRun: true, Requires: testRequires, Run: run(testArgv...)},
	)
	return steps
}

// runTool executes one argv and converts a non-zero exit into an error whose
// text is enough to reproduce the failure locally.
func runTool(ctx context.Context, inv toolexec.Invoker, dir string, argv []string) error {
	res, err := inv.Run(ctx, dir, argv)
	if err != nil {
		if res == nil {
			return err
		}
		return fmt.Errorf("%s: %w", res.Command(), err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s (exit %d): %s", res.Command(), res.ExitCode, res.Tail(10))
	}
	return nil
}
