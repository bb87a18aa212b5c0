package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/environ"
	"github.com/vk/installgrid/internal/event"
	"github.com/vk/installgrid/internal/executor"
	"github.com/vk/installgrid/internal/installer"
	"github.com/vk/installgrid/internal/matrix"
	"github.com/vk/installgrid/internal/metrics"
	"github.com/vk/installgrid/internal/notify"
	"github.com/vk/installgrid/internal/report"
	"github.com/vk/installgrid/internal/status"
)

// ErrRunFailed marks a run that completed but reached a failing verdict. The
// entrypoint maps it to a distinct exit code.
var ErrRunFailed = errors.New("run finished with a failing verdict")

// Run executes the pipeline selected by the event and configuration.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startOpsServer(appConfig.HealthcheckPort)
	}

	evt, err := a.loadEvent(appConfig)
	if err != nil {
		return err
	}

	pipeline := appConfig.Pipeline
	if pipeline == PipelineAuto {
		switch evt.Type {
		case event.PullRequest:
			pipeline = PipelineVerify
		case event.Push:
			pipeline = PipelineStatus
		}
	}
	a.logger.Info("Pipeline selected.", "pipeline", pipeline, "event", string(evt.Type), "ref", evt.SourceRef)

	switch pipeline {
	case PipelineVerify:
		return a.runVerify(ctx, appConfig, evt)
	case PipelineStatus:
		return a.runStatus(ctx, appConfig, evt)
	default:
		return fmt.Errorf("no pipeline selectable for event type %q", evt.Type)
	}
}

// loadEvent reads the trigger descriptor. When no event file is configured
// the pipeline choice is already explicit, so a synthetic descriptor pointing
// at the current head is enough.
func (a *App) loadEvent(appConfig *Config) (*event.Descriptor, error) {
	if appConfig.EventPath == "" {
		t := event.PullRequest
		if appConfig.Pipeline == PipelineStatus {
			t = event.Push
		}
		return &event.Descriptor{Type: t, SourceRef: "HEAD"}, nil
	}
	evt, err := event.Load(appConfig.EventPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Event descriptor loaded.", "type", string(evt.Type), "ref", evt.SourceRef)
	return evt, nil
}

// runVerify expands the matrix and drives every cell to a terminal state.
func (a *App) runVerify(ctx context.Context, appConfig *Config, evt *event.Descriptor) error {
	cfg := a.config.Verify
	if cfg == nil {
		return errors.New("verify pipeline selected but the configuration has no verify block")
	}

	specs, err := matrix.Expand(cfg.Axes)
	if err != nil {
		return fmt.Errorf("failed to expand matrix: %w", err)
	}
	a.logger.Info("Matrix expanded.", "jobs", len(specs))

	// The local install method consumes a working copy, which an external
	// checkout tool places on disk once, before the matrix runs.
	if slices.Contains(cfg.Axes.InstallMethods, installer.MethodLocal) {
		if err := a.checkout(ctx, appConfig, evt); err != nil {
			return err
		}
	}

	methods := map[string]installer.Method{
		installer.MethodLocal:    &installer.LocalSource{Requirements: cfg.Requirements, Path: cfg.SourcePath},
		installer.MethodIndex:    &installer.Index{},
		installer.MethodLockfile: &installer.Lockfile{},
	}
	provisioner := &environ.ExecProvisioner{
		Command: a.config.Tools.Provisioner,
		Invoker: a.invoker,
		WorkDir: appConfig.WorkDir,
	}
	testArgv := []string{"python", "-m", "pytest", "-m", cfg.TestFilter, cfg.TestPath}

	exec := executor.New(provisioner, methods, cfg.Package, evt.RemoteRef(cfg.Repository),
		testArgv, appConfig.WorkerCount, a.metrics)

	start := time.Now()
	results := exec.Run(ctx, specs)

	rep := report.Aggregate(uuid.NewString(), specs, results)
	rep.Elapsed = time.Since(start)
	rep.Render(a.outW)
	a.metrics.RunCompleted(string(rep.Overall), len(rep.Results), rep.Elapsed)

	a.publishReport(ctx, rep)

	if !rep.Succeeded() {
		return ErrRunFailed
	}
	return nil
}

// checkout fetches the revision under test into the working directory.
func (a *App) checkout(ctx context.Context, appConfig *Config, evt *event.Descriptor) error {
	if a.config.Tools == nil || len(a.config.Tools.Checkout) == 0 {
		return errors.New("local install method requires a checkout command in the tools block")
	}

	argv := append(append([]string{}, a.config.Tools.Checkout...),
		"--repo", evt.CloneURL(a.config.Verify.Repository), "--ref", evt.SourceRef, "--submodules")
	a.logger.Info("Checking out working copy.", "ref", evt.SourceRef)

	res, err := a.invoker.Run(ctx, appConfig.WorkDir, argv)
	if err != nil {
		return fmt.Errorf("checkout failed to start: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("checkout failed: %s (exit %d): %s", res.Command(), res.ExitCode, res.Tail(10))
	}
	return nil
}

// publishReport delivers the report to the configured webhook. Delivery is
// best-effort and never changes the run verdict.
func (a *App) publishReport(ctx context.Context, rep *report.RunReport) {
	if a.config.Notify == nil {
		return
	}

	publisher := notify.NewWebhookPublisher(a.config.Notify.URL, a.config.Notify.Secret)
	if err := publisher.Publish(ctx, rep); err != nil {
		a.logger.Error("Report publish failed.", "url", a.config.Notify.URL, "error", err)
		a.metrics.PublishOutcome(metrics.OutcomeFailed)
		return
	}
	a.logger.Info("Report published.", "url", a.config.Notify.URL)
	a.metrics.PublishOutcome(metrics.OutcomeSuccess)
}

// runStatus runs the non-matrixed lint/test pipeline once.
func (a *App) runStatus(ctx context.Context, appConfig *Config, evt *event.Descriptor) error {
	cfg := a.config.Status
	if cfg == nil {
		return errors.New("status pipeline selected but the configuration has no status block")
	}

	var fallbackRepo string
	if a.config.Verify != nil {
		fallbackRepo = a.config.Verify.Repository
	}

	steps := status.BuildSteps(a.invoker, status.BuildOptions{
		WorkDir:       appConfig.WorkDir,
		Checkout:      a.config.Tools.Checkout,
		CloneURL:      evt.CloneURL(fallbackRepo),
		SourceRef:     evt.SourceRef,
		RuntimeSetup:  a.config.Tools.RuntimeSetup,
		PythonVersion: cfg.PythonVersion,
		Requirements:  cfg.Requirements,
		LintCommand:   cfg.Lint.Command,
		LintRuleset:   cfg.Lint.Ruleset,
		LintTargets:   cfg.Lint.Targets,
		TestFilter:    cfg.Tests.Filter,
		TestPath:      cfg.Tests.Path,
	})

	result := status.New(steps, a.metrics).Run(ctx)
	result.Render(a.outW)

	if !result.Succeeded() {
		return ErrRunFailed
	}
	return nil
}
