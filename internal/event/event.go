// Package event models the trigger descriptor handed to the orchestrator by
// the surrounding CI system. The descriptor arrives as a small YAML document
// rather than as part of the grid config, because it is produced per change
// by an external system, not authored by the grid's maintainers.
package event

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Type names the kind of change event that triggered a run.
type Type string

const (
	PullRequest Type = "pull_request"
	Push        Type = "push"
)

// Descriptor carries everything the pipelines need to know about the
// triggering change.
type Descriptor struct {
	Type      Type   `yaml:"event_type"`
	SourceRef string `yaml:"source_ref"`
	HeadRepo  string `yaml:"head_repo"`
	Branch    string `yaml:"branch"`
}

// Validate checks the descriptor for the fields every pipeline relies on.
func (d *Descriptor) Validate() error {
	switch d.Type {
	case PullRequest, Push:
	default:
		return fmt.Errorf("unknown event type %q", d.Type)
	}
	if d.SourceRef == "" {
		return fmt.Errorf("event is missing source_ref")
	}
	return nil
}

// CloneURL resolves the repository to fetch from. fallbackRepo is the
// canonical clone URL from the grid config, used when the event does not
// carry a head repository (e.g. direct pushes).
func (d *Descriptor) CloneURL(fallbackRepo string) string {
	if d.HeadRepo != "" {
		return fmt.Sprintf("https://github.com/%s.git", d.HeadRepo)
	}
	return fallbackRepo
}

// RemoteRef builds the VCS reference install methods resolve against: the
// head repository pinned to the exact revision under test.
func (d *Descriptor) RemoteRef(fallbackRepo string) string {
	return fmt.Sprintf("git+%s@%s", d.CloneURL(fallbackRepo), d.SourceRef)
}

// Load reads and validates a descriptor from a YAML file.
func Load(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode event descriptor %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event descriptor %s: %w", path, err)
	}
	return &d, nil
}
