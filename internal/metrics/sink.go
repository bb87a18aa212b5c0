// Package metrics records operational metrics for matrix runs and the status
// pipeline.
package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log and continue.
type Sink interface {
	// Matrix executor metrics
	JobStarted()
	JobCompleted(status string, class string, duration time.Duration)
	EnvironmentsInFlightIncr()
	EnvironmentsInFlightDecr()
	RunCompleted(verdict string, jobs int, duration time.Duration)

	// Status pipeline metrics
	StatusStepCompleted(step string, outcome string)

	// Report webhook metrics
	PublishOutcome(outcome string)
}

// Outcome constants for PublishOutcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
