package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/installer"
	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/report"
)

// statusForPhase maps the phase a job aborted in to its terminal status.
func statusForPhase(p report.Phase) report.Status {
	switch p {
	case report.PhaseProvisioning:
		return report.StatusProvisionFailed
	case report.PhaseInstalling:
		return report.StatusInstallFailed
	case report.PhaseSmokeTesting:
		return report.StatusImportFailed
	case report.PhaseRunningTests:
		return report.StatusTestsFailed
	default:
		return report.StatusProvisionFailed
	}
}

// runJob drives one matrix cell through its state machine:
//
//	Provisioning → Installing → SmokeTesting → RunningTests → Done
//
// with abort from any phase on unrecoverable failure. The provisioned
// environment is released on every exit path, including panic and
// cancellation, and that release happens exactly once.
func (e *Executor) runJob(ctx context.Context, spec matrix.JobSpec) (res report.JobResult) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	res = report.JobResult{Spec: spec, Phase: report.PhaseProvisioning}
	defer func() {
		if r := recover(); r != nil {
			// A panic inside one job must never take down siblings.
			res.Status = statusForPhase(res.Phase)
			res.Diagnostic = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	e.metrics.JobStarted()

	env, err := e.provisioner.Provision(ctx, spec.OS, spec.Version)
	if err != nil {
		res.Status = report.StatusProvisionFailed
		res.Diagnostic = err.Error()
		return res
	}
	e.metrics.EnvironmentsInFlightIncr()

	// Teardown must run even when ctx is already canceled, so it gets a
	// detached, bounded context of its own.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if rerr := env.Release(releaseCtx); rerr != nil {
			logger.Error("Environment release failed.", "envID", env.ID, "error", rerr)
		}
		e.metrics.EnvironmentsInFlightDecr()
	}()
	logger.Debug("Environment acquired.", "envID", env.ID)

	res.Phase = report.PhaseInstalling
	method, ok := e.methods[spec.Method]
	if !ok {
		res.Status = report.StatusInstallFailed
		res.Diagnostic = fmt.Sprintf("no install method registered for %q", spec.Method)
		return res
	}
	if err := method.Install(ctx, env, e.ref); err != nil {
		res.Status = report.StatusInstallFailed
		var ierr *installer.InstallError
		if errors.As(err, &ierr) {
			res.Class = report.FailureClass(ierr.Class)
		}
		res.Diagnostic = err.Error()
		return res
	}
	logger.Debug("Install complete.", "method", spec.Method)

	res.Phase = report.PhaseSmokeTesting
	out, err := env.Exec(ctx, "python", "-c", "import "+e.pkg)
	if err != nil {
		res.Status = report.StatusImportFailed
		res.Diagnostic = fmt.Sprintf("%s: %v", out.Command(), err)
		return res
	}
	if out.ExitCode != 0 {
		res.Status = report.StatusImportFailed
		res.Diagnostic = fmt.Sprintf("%s (exit %d): %s", out.Command(), out.ExitCode, out.Tail(10))
		return res
	}
	logger.Debug("Smoke test passed.", "package", e.pkg)

	res.Phase = report.PhaseRunningTests
	out, err = env.Exec(ctx, e.testArgv...)
	if err != nil {
		res.Status = report.StatusTestsFailed
		res.Diagnostic = fmt.Sprintf("%s: %v", out.Command(), err)
		return res
	}
	if out.ExitCode != 0 {
		res.Status = report.StatusTestsFailed
		res.Diagnostic = fmt.Sprintf("%s (exit %d): %s", out.Command(), out.ExitCode, out.Tail(10))
		return res
	}

	res.Phase = report.PhaseDone
	res.Status = report.StatusSuccess
	return res
}
