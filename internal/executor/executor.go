// Package executor runs the expanded verification matrix: a pool of workers
// drives one job per cell through provision, install, smoke test and the
// filtered suite, and a single collector goroutine accumulates the results.
//
// Jobs are isolated failure domains. A failing cell never cancels its
// siblings; the run verdict is computed only after every job has reached a
// terminal state.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/environ"
	"github.com/vk/installgrid/internal/installer"
	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/metrics"
	"github.com/vk/installgrid/internal/report"
)

// releaseTimeout bounds environment teardown once a job has finished or been
// canceled. Teardown runs on a detached context so that canceling a run can
// never leak an environment.
const releaseTimeout = 2 * time.Minute

// Executor owns the worker pool for one matrix run.
type Executor struct {
	provisioner environ.Provisioner
	methods     map[string]installer.Method

	pkg      string   // import name used by the smoke test
	ref      string   // VCS reference handed to remote install methods
	testArgv []string // full test-runner invocation, filter included

	numWorkers int
	metrics    metrics.Sink
}

// New assembles an executor. workers is clamped to at least one.
func New(p environ.Provisioner, methods map[string]installer.Method, pkg, ref string, testArgv []string, workers int, sink metrics.Sink) *Executor {
	if workers < 1 {
		workers = 1
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Executor{
		provisioner: p,
		methods:     methods,
		pkg:         pkg,
		ref:         ref,
		testArgv:    testArgv,
		numWorkers:  workers,
		metrics:     sink,
	}
}

// Run executes every job spec to a terminal state and returns one result per
// spec, in completion order. Canceling ctx interrupts in-flight phases; each
// affected job still releases its environment and reports a result.
func (e *Executor) Run(ctx context.Context, specs []matrix.JobSpec) []report.JobResult {
	logger := ctxlog.FromContext(ctx)

	jobs := make(chan matrix.JobSpec)
	resultCh := make(chan report.JobResult)

	// Dedicated collector: the RunReport accumulator is append-only and
	// single-writer, so no job ever touches shared mutable state.
	collected := make([]report.JobResult, 0, len(specs))
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range resultCh {
			collected = append(collected, res)
		}
	}()

	var wg sync.WaitGroup
	logger.Debug("Starting worker pool.", "workers", e.numWorkers, "jobs", len(specs))
	for i := 0; i < e.numWorkers; i++ {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, resultCh, i)
	}

	for _, spec := range specs {
		jobs <- spec
	}
	close(jobs)

	wg.Wait()
	close(resultCh)
	<-collectorDone

	logger.Debug("All jobs reached a terminal state.", "results", len(collected))
	return collected
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan matrix.JobSpec, results chan<- report.JobResult, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)
	defer wg.Done()

	for spec := range jobs {
		jobLogger := logger.With("workerID", workerID, "job", spec.String())
		jobCtx := ctxlog.WithLogger(ctx, jobLogger)

		jobLogger.Debug("Worker picked up job.")
		res := e.runJob(jobCtx, spec)

		if res.Succeeded() {
			jobLogger.Info("Job passed.", "duration", res.Duration)
		} else {
			// A failed cell is contained here: log it, report it, move on.
			jobLogger.Error("Job failed.", "phase", res.Phase.String(), "status", res.Status.String(), "error", res.Diagnostic)
		}
		e.metrics.JobCompleted(res.Status.String(), string(res.Class), res.Duration)
		results <- res
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
