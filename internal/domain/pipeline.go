// Package domain defines the core data structures for GANTRY.
//
// This package contains pure data types with no behavior beyond basic
// accessors and validation helpers. It MUST NOT import any other internal
// packages except internal/constants.
package domain

import "time"

// Pipeline is the declarative description of one pipeline: an ordered list of
// stages plus a notification target. It is immutable after load.
type Pipeline struct {
	// Name identifies the pipeline. Run results are stored under this name,
	// so it must be stable across runs for change detection to work.
	Name string `yaml:"name" json:"name"`

	// Stages is the ordered list of stage declarations. Stages execute
	// strictly in this order; each stage is a gate for the next.
	Stages []StageSpec `yaml:"stages" json:"stages"`

	// Notify configures where status-change notifications go.
	Notify NotifySpec `yaml:"notify" json:"notify"`
}

// StageSpec declares one unit of pipeline work: an execution environment
// reference and a shell command, plus the report artifacts the command is
// expected to produce.
type StageSpec struct {
	// Name identifies the stage within the pipeline. Unique per pipeline.
	Name string `yaml:"name" json:"name"`

	// Environment references the execution environment for the command.
	// Recognized forms: "docker://IMAGE" for a container, "local" for the
	// host. The scheme selects a provider at stage-execution time.
	Environment string `yaml:"environment" json:"environment"`

	// Command is the shell command run inside the environment (sh -c).
	Command string `yaml:"command" json:"command"`

	// Workdir is the working directory for the command. Empty means the
	// runner's current directory (mounted into containers).
	Workdir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`

	// Env holds extra environment variables exported to the command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Reports lists paths (relative to the workdir) of report artifacts the
	// command produces, e.g. junit XML and coverage files. Collected after
	// the command completes; missing files are logged, not fatal.
	Reports []string `yaml:"reports,omitempty" json:"reports,omitempty"`

	// Timeout bounds the command's execution. Zero means the configured
	// default stage timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// NotifySpec configures status-change notification for a pipeline.
type NotifySpec struct {
	// Email is the address notified when the pipeline's overall status
	// changes between runs. Empty disables email notification.
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

// EffectiveTimeout returns the stage's timeout, falling back to the given
// configured default when the declaration leaves it unset.
func (s *StageSpec) EffectiveTimeout(fallback time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return fallback
}

// StageNames returns the declared stage names in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}
