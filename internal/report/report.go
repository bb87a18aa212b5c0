// Package report collects per-job outcomes into a single run report and
// renders the human-readable verdict.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/vk/installgrid/internal/matrix"
)

// Phase identifies how far through its lifecycle a job progressed.
type Phase int

const (
	PhaseProvisioning Phase = iota
	PhaseInstalling
	PhaseSmokeTesting
	PhaseRunningTests
	PhaseDone
)

// String returns the phase name used in logs and reports.
func (p Phase) String() string {
	switch p {
	case PhaseProvisioning:
		return "Provisioning"
	case PhaseInstalling:
		return "Installing"
	case PhaseSmokeTesting:
		return "SmokeTesting"
	case PhaseRunningTests:
		return "RunningTests"
	case PhaseDone:
		return "Done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText makes phases render as names in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status is the terminal classification of one job.
type Status int

const (
	StatusSuccess Status = iota
	StatusProvisionFailed
	StatusInstallFailed
	StatusImportFailed
	StatusTestsFailed
)

// String returns the status name used in logs and reports.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusProvisionFailed:
		return "ProvisionFailed"
	case StatusInstallFailed:
		return "InstallFailed"
	case StatusImportFailed:
		return "ImportFailed"
	case StatusTestsFailed:
		return "TestsFailed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText makes statuses render as names in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FailureClass distinguishes transient infrastructure failures from genuine
// dependency-resolution failures during install. It is surfaced for operator
// visibility only; the executor never retries on it.
type FailureClass string

const (
	ClassNone       FailureClass = ""
	ClassTransient  FailureClass = "transient"
	ClassResolution FailureClass = "resolution"
)

// JobResult is the write-once outcome of executing one JobSpec. It is created
// exactly once per spec by the job executor and never mutated afterwards.
type JobResult struct {
	Spec       matrix.JobSpec `json:"spec"`
	Phase      Phase          `json:"phase"`
	Status     Status         `json:"status"`
	Class      FailureClass   `json:"class,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// Succeeded reports whether the job reached Done with a passing suite.
func (r JobResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Verdict is the aggregate outcome over all jobs of one run.
type Verdict string

const (
	VerdictSuccess Verdict = "Success"
	VerdictFailure Verdict = "Failure"
)

// RunReport aggregates every JobResult produced for one triggering event.
// It is derived data, recomputed by Aggregate, and not persisted beyond the
// event's lifetime.
type RunReport struct {
	RunID   string        `json:"run_id"`
	Results []JobResult   `json:"results"`
	Overall Verdict       `json:"overall"`
	Elapsed time.Duration `json:"elapsed"`
}

// Succeeded reports whether every job in the run passed.
func (r *RunReport) Succeeded() bool {
	return r.Overall == VerdictSuccess
}

// Aggregate combines job results into a RunReport. The overall verdict is
// Success iff every result is Success. Aggregation is order-independent:
// results may arrive in any completion order, but the report preserves the
// expander's original ordering for readability.
func Aggregate(runID string, order []matrix.JobSpec, results []JobResult) *RunReport {
	byJob := make(map[matrix.JobSpec]JobResult, len(results))
	for _, res := range results {
		byJob[res.Spec] = res
	}

	rep := &RunReport{RunID: runID, Overall: VerdictSuccess}
	for _, spec := range order {
		res, ok := byJob[spec]
		if !ok {
			// A job that never reported is itself a failure; it must not
			// silently vanish from the verdict.
			res = JobResult{
				Spec:       spec,
				Phase:      PhaseProvisioning,
				Status:     StatusProvisionFailed,
				Diagnostic: "job produced no result",
			}
		}
		rep.Results = append(rep.Results, res)
		if !res.Succeeded() {
			rep.Overall = VerdictFailure
		}
	}
	return rep
}

// Render writes the human-readable report. Every non-Success cell is listed
// with the exact phase reached and a diagnostic sufficient to reproduce the
// failure locally.
func (r *RunReport) Render(w io.Writer) {
	passed := 0
	for _, res := range r.Results {
		if res.Succeeded() {
			passed++
		}
	}
	fmt.Fprintf(w, "verification matrix %s: %d jobs, %d passed, %d failed\n",
		r.RunID, len(r.Results), passed, len(r.Results)-passed)

	for _, res := range r.Results {
		if res.Succeeded() {
			fmt.Fprintf(w, "  ok   %s  (%s)\n", res.Spec, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  FAIL %s  phase=%s status=%s", res.Spec, res.Phase, res.Status)
		if res.Class != ClassNone {
			fmt.Fprintf(w, " class=%s", res.Class)
		}
		fmt.Fprintln(w)
		if res.Diagnostic != "" {
			fmt.Fprintf(w, "       %s\n", res.Diagnostic)
		}
	}

	fmt.Fprintf(w, "overall: %s\n", r.Overall)
}
