package app

import (
	"errors"
	"fmt"
)

// Pipeline selection values for Config.Pipeline.
const (
	PipelineAuto   = "auto"
	PipelineVerify = "verify"
	PipelineStatus = "status"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath  string // hcl files
	EventPath string // yaml trigger-event descriptor

	// Pipeline overrides event-driven selection. "auto" picks the pipeline
	// from the event type: pull_request runs the verification matrix, push
	// runs the status pipeline.
	Pipeline string

	// WorkDir is where external tools run and the working copy is checked
	// out. Empty means the current directory.
	WorkDir string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = PipelineAuto
	}
	switch cfg.Pipeline {
	case PipelineAuto, PipelineVerify, PipelineStatus:
	default:
		return nil, fmt.Errorf("invalid pipeline %q: must be 'auto', 'verify' or 'status'", cfg.Pipeline)
	}
	if cfg.Pipeline == PipelineAuto && cfg.EventPath == "" {
		return nil, errors.New("EventPath is required when the pipeline is selected automatically")
	}
	return &cfg, nil
}
