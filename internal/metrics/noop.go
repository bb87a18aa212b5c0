package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) JobStarted()                                                    {}
func (n *NoopSink) JobCompleted(status string, class string, d time.Duration)      {}
func (n *NoopSink) EnvironmentsInFlightIncr()                                      {}
func (n *NoopSink) EnvironmentsInFlightDecr()                                      {}
func (n *NoopSink) RunCompleted(verdict string, jobs int, duration time.Duration)  {}
func (n *NoopSink) StatusStepCompleted(step string, outcome string)                {}
func (n *NoopSink) PublishOutcome(outcome string)                                  {}
