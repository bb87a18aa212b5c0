package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	jobsStartedTotal     prometheus.Counter
	jobsCompletedTotal   *prometheus.CounterVec
	jobDuration          prometheus.Histogram
	environmentsInFlight prometheus.Gauge

	runsCompletedTotal *prometheus.CounterVec
	runDuration        prometheus.Histogram
	runJobs            prometheus.Histogram

	statusStepsTotal *prometheus.CounterVec

	publishOutcomesTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left unexported; the sink
// stays functional either way.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}

	s.jobsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "installgrid_jobs_started_total",
		Help: "Total number of matrix jobs started.",
	})
	s.jobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "installgrid_jobs_completed_total",
		Help: "Total number of matrix jobs reaching a terminal state.",
	}, []string{"status", "class"})
	s.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "installgrid_job_duration_seconds",
		Help:    "End-to-end duration of one matrix job in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	s.environmentsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "installgrid_environments_in_flight",
		Help: "Number of provisioned environments not yet released.",
	})

	s.runsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "installgrid_runs_completed_total",
		Help: "Total number of finished matrix runs per verdict.",
	}, []string{"verdict"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "installgrid_run_duration_seconds",
		Help:    "Wall-clock duration of one matrix run in seconds.",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
	})
	s.runJobs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "installgrid_run_jobs",
		Help:    "Number of jobs per matrix run.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})

	s.statusStepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "installgrid_status_steps_total",
		Help: "Status pipeline step completions per step and outcome.",
	}, []string{"step", "outcome"})

	s.publishOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "installgrid_report_publish_total",
		Help: "Report webhook publish attempts per outcome.",
	}, []string{"outcome"})

	s.register(reg, s.jobsStartedTotal, "installgrid_jobs_started_total")
	s.register(reg, s.jobsCompletedTotal, "installgrid_jobs_completed_total")
	s.register(reg, s.jobDuration, "installgrid_job_duration_seconds")
	s.register(reg, s.environmentsInFlight, "installgrid_environments_in_flight")
	s.register(reg, s.runsCompletedTotal, "installgrid_runs_completed_total")
	s.register(reg, s.runDuration, "installgrid_run_duration_seconds")
	s.register(reg, s.runJobs, "installgrid_run_jobs")
	s.register(reg, s.statusStepsTotal, "installgrid_status_steps_total")
	s.register(reg, s.publishOutcomesTotal, "installgrid_report_publish_total")

	return s
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) JobStarted() {
	s.jobsStartedTotal.Inc()
}

func (s *PrometheusSink) JobCompleted(status string, class string, duration time.Duration) {
	s.jobsCompletedTotal.WithLabelValues(status, class).Inc()
	s.jobDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) EnvironmentsInFlightIncr() {
	s.environmentsInFlight.Inc()
}

func (s *PrometheusSink) EnvironmentsInFlightDecr() {
	s.environmentsInFlight.Dec()
}

func (s *PrometheusSink) RunCompleted(verdict string, jobs int, duration time.Duration) {
	s.runsCompletedTotal.WithLabelValues(verdict).Inc()
	s.runDuration.Observe(duration.Seconds())
	s.runJobs.Observe(float64(jobs))
}

func (s *PrometheusSink) StatusStepCompleted(step string, outcome string) {
	s.statusStepsTotal.WithLabelValues(step, outcome).Inc()
}

func (s *PrometheusSink) PublishOutcome(outcome string) {
	s.publishOutcomesTotal.WithLabelValues(outcome).Inc()
}
