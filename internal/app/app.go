package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/installgrid/internal/config"
	"github.com/vk/installgrid/internal/ctxlog"
	"github.com/vk/installgrid/internal/metrics"
	"github.com/vk/installgrid/internal/toolexec"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *config.Model
	invoker  toolexec.Invoker
	metrics  metrics.Sink
	registry *prometheus.Registry
}

// Option customizes an App, primarily for testing.
type Option func(*App)

// WithInvoker replaces the production tool invoker.
func WithInvoker(inv toolexec.Invoker) Option {
	return func(a *App) { a.invoker = inv }
}

// WithMetrics replaces the Prometheus-backed metrics sink.
func WithMetrics(sink metrics.Sink) Option {
	return func(a *App) { a.metrics = sink }
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and metrics
// registry.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Load all configuration into the format-agnostic model first.
	cfgModel, err := loader.Load(ctx, appConfig.GridPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	registry := prometheus.NewRegistry()
	a := &App{
		outW:     outW,
		logger:   logger,
		config:   cfgModel,
		invoker:  &toolexec.ExecInvoker{},
		metrics:  metrics.NewPrometheusSink(registry),
		registry: registry,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.config
}
