// Package pipeline loads and validates pipeline declaration files.
//
// A pipeline file (gantry.yaml) is the declarative input to the runner:
// a named, ordered list of stages, each with an execution environment
// reference and a shell command, plus an optional notification target.
//
//	name: tvb-tests
//	stages:
//	  - name: python3-tests
//	    environment: docker://python:3.12
//	    command: pytest --junitxml=results.xml --cov-report=xml
//	    reports: [results.xml, coverage.xml]
//	notify:
//	  email: team@example.org
package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/domain"
	"github.com/mrz1836/gantry/internal/env"
	"github.com/mrz1836/gantry/internal/errors"
)

// maxPipelineFileSize bounds pipeline file reads. A declaration approaching
// this size is almost certainly a mistake.
const maxPipelineFileSize = 1 << 20 // 1 MiB

// Load reads and validates a pipeline declaration from the given path.
// An empty path loads the default gantry.yaml from the working directory.
func Load(path string) (*domain.Pipeline, error) {
	if path == "" {
		path = constants.PipelineFileName
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%q: %w", path, errors.ErrPipelineNotFound)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat pipeline file %q", path)
	}
	if info.Size() > maxPipelineFileSize {
		return nil, errors.Wrapf(errors.ErrInvalidPipeline,
			"pipeline file %q exceeds %d bytes", path, maxPipelineFileSize)
	}

	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the user's own CLI invocation
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read pipeline file %q", path)
	}

	return Parse(data)
}

// Parse decodes and validates a pipeline declaration from raw YAML.
func Parse(data []byte) (*domain.Pipeline, error) {
	var p domain.Pipeline

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	// Unknown keys are declaration typos, not forward compatibility.
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(err, "failed to parse pipeline file")
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks a pipeline declaration for structural problems.
// It returns an error describing the first problem found.
func Validate(p *domain.Pipeline) error {
	if p == nil {
		return errors.Wrap(errors.ErrInvalidPipeline, "pipeline is nil")
	}

	if strings.TrimSpace(p.Name) == "" {
		return errors.Wrap(errors.ErrInvalidPipeline, "pipeline name must not be empty")
	}

	if len(p.Stages) == 0 {
		return errors.Wrap(errors.ErrInvalidPipeline, "pipeline declares no stages")
	}

	seen := make(map[string]bool, len(p.Stages))
	for i := range p.Stages {
		if err := validateStage(&p.Stages[i], i, seen); err != nil {
			return err
		}
	}

	if email := p.Notify.Email; email != "" && !strings.Contains(email, "@") {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"notify.email %q is not a valid address", email)
	}

	return nil
}

// validateStage checks a single stage declaration.
func validateStage(s *domain.StageSpec, index int, seen map[string]bool) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"stage %d has no name", index)
	}
	if seen[s.Name] {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"duplicate stage name %q", s.Name)
	}
	seen[s.Name] = true

	if strings.TrimSpace(s.Command) == "" {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"stage %q has no command", s.Name)
	}

	if strings.TrimSpace(s.Environment) == "" {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"stage %q has no environment reference", s.Name)
	}
	if _, err := env.ParseRef(s.Environment); err != nil {
		// Catch a bad ref here, at validation, rather than at acquisition
		// time mid-run.
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"stage %q has unparseable environment reference %q", s.Name, s.Environment)
	}

	if s.Timeout < 0 {
		return errors.Wrapf(errors.ErrInvalidPipeline,
			"stage %q has negative timeout %s", s.Name, s.Timeout)
	}

	for name := range s.Env {
		if !isValidEnvVarName(name) {
			return errors.Wrapf(errors.ErrInvalidPipeline,
				"stage %q declares invalid environment variable name %q", s.Name, name)
		}
	}

	for _, report := range s.Reports {
		if strings.TrimSpace(report) == "" {
			return errors.Wrapf(errors.ErrInvalidPipeline,
				"stage %q declares an empty report path", s.Name)
		}
		if strings.HasPrefix(report, "/") || strings.Contains(report, "..") {
			return errors.Wrapf(errors.ErrInvalidPipeline,
				"stage %q report path %q must be relative and must not escape the workdir", s.Name, report)
		}
	}

	return nil
}

// isValidEnvVarName reports whether name is a POSIX-portable environment
// variable name: [A-Za-z_][A-Za-z0-9_]*.
func isValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
