// Package status implements the non-matrixed pipeline that runs on every
// change: static lint analysis plus the filtered test suite, once, in a fixed
// reference environment.
//
// Steps form an explicit list with declared continuation semantics. A step
// marked AlwaysRun executes even when an earlier, unrelated step has failed;
// it is only skipped when one of its hard preconditions (Requires) did not
// pass. That models the lint check, which must report on every change but
// cannot run without a checkout.
package status

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/metrics"
)

// Outcome is the terminal state of one pipeline step.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Step is one unit of the pipeline.
type Step struct {
	Name string
	// AlwaysRun lets the step execute after an unrelated upstream failure.
	AlwaysRun bool
	// Requires names steps that must have passed for this step to be
	// runnable at all, even under AlwaysRun.
	Requires []string
	Run      func(ctx context.Context) error
}

// StepResult records how one step ended.
type StepResult struct {
	Name       string
	Outcome    Outcome
	Diagnostic string
	Duration   time.Duration
}

// RunResult is the outcome of one pipeline invocation. Lint and Tests carry
// the independent check verdicts; a check that never ran counts as skipped.
type RunResult struct {
	Steps []StepResult
	Lint  Outcome
	Tests Outcome
}

// Succeeded reports whether both independent checks passed.
func (r *RunResult) Succeeded() bool {
	return r.Lint == OutcomePassed && r.Tests == OutcomePassed
}

// Render writes the step-by-step outcome.
func (r *RunResult) Render(w io.Writer) {
	fmt.Fprintln(w, "status pipeline:")
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  %-7s %s", s.Outcome, s.Name)
		if s.Outcome == OutcomePassed {
			fmt.Fprintf(w, "  (%s)", s.Duration.Round(time.Millisecond))
		}
		fmt.Fprintln(w)
		if s.Diagnostic != "" {
			fmt.Fprintf(w, "          %s\n", s.Diagnostic)
		}
	}
	verdict := "Failure"
	if r.Succeeded() {
		verdict = "Success"
	}
	fmt.Fprintf(w, "status: %s (lint=%s, tests=%s)\n", verdict, r.Lint, r.Tests)
}

// Names of the two checks the RunResult surfaces.
const (
	StepLint  = "lint"
	StepTests = "tests"
)

// Pipeline executes its steps in order with the declared continuation
// semantics.
type Pipeline struct {
	steps   []Step
	metrics metrics.Sink
}

// New builds a pipeline over the given steps.
func New(steps []Step, sink metrics.Sink) *Pipeline {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Pipeline{steps: steps, metrics: sink}
}

// Run executes the pipeline. It never aborts early: every step either runs
// or is recorded as skipped, so the result always accounts for the full
// pipeline.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	logger := ctxlog.FromContext(ctx)

	result := &RunResult{Lint: OutcomeSkipped, Tests: OutcomeSkipped}
	outcomes := make(map[string]Outcome, len(p.steps))
	anyFailed := false

	for _, step := range p.steps {
		blocked := false
		for _, req := range step.Requires {
			if outcomes[req] != OutcomePassed {
				blocked = true
				break
			}
		}

		if blocked || (anyFailed && !step.AlwaysRun) {
			logger.Warn("Skipping step.", "step", step.Name, "blocked", blocked)
			outcomes[step.Name] = OutcomeSkipped
			result.Steps = append(result.Steps, StepResult{Name: step.Name, Outcome: OutcomeSkipped})
			p.metrics.StatusStepCompleted(step.Name, string(OutcomeSkipped))
			continue
		}

		logger.Debug("Running step.", "step", step.Name)
		start := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(start)

		sr := StepResult{Name: step.Name, Outcome: OutcomePassed, Duration: elapsed}
		if err != nil {
			logger.Error("Step failed.", "step", step.Name, "error", err)
			sr.Outcome = OutcomeFailed
			sr.Diagnostic = err.Error()
			anyFailed = true
		}
		outcomes[step.Name] = sr.Outcome
		result.Steps = append(result.Steps, sr)
		p.metrics.StatusStepCompleted(step.Name, string(sr.Outcome))
	}

	if o, ok := outcomes[StepLint]; ok {
		result.Lint = o
	}
	if o, ok := outcomes[StepTests]; ok {
		result.Tests = o
	}
	return result
}
