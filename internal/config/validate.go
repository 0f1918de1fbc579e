package config

import (
	"time"

	"github.com/mrz1836/gantry/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - Stage timeout must be positive and at most 24 hours
//   - Environment timeout must be positive
//   - Docker binary must not be empty
//   - Docker pull policy must be one of missing/always/never
//   - Email settings must be complete when email is enabled
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateRunnerConfig(&cfg.Runner); err != nil {
		return err
	}

	if err := validateDockerConfig(&cfg.Docker); err != nil {
		return err
	}

	if err := validateNotificationsConfig(&cfg.Notifications); err != nil {
		return err
	}

	return nil
}

// validateRunnerConfig checks runner-specific configuration values.
func validateRunnerConfig(cfg *RunnerConfig) error {
	maxStageTimeout := 24 * time.Hour
	if cfg.StageTimeout <= 0 || cfg.StageTimeout > maxStageTimeout {
		return errors.Wrapf(errors.ErrConfigInvalidRunner,
			"runner.stage_timeout must be between 0 and %s, got %s", maxStageTimeout, cfg.StageTimeout)
	}

	if cfg.EnvironmentTimeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidRunner,
			"runner.environment_timeout must be positive, got %s", cfg.EnvironmentTimeout)
	}

	return nil
}

// validateDockerConfig checks docker provider configuration values.
func validateDockerConfig(cfg *DockerConfig) error {
	if cfg.Binary == "" {
		return errors.Wrap(errors.ErrConfigInvalidRunner,
			"docker.binary must not be empty")
	}

	switch cfg.PullPolicy {
	case PullPolicyMissing, PullPolicyAlways, PullPolicyNever:
	default:
		return errors.Wrapf(errors.ErrConfigInvalidRunner,
			"docker.pull_policy must be one of missing/always/never, got %q", cfg.PullPolicy)
	}

	return nil
}

// validateNotificationsConfig checks notification configuration values.
func validateNotificationsConfig(cfg *NotificationsConfig) error {
	if !cfg.Email.Enabled {
		return nil
	}

	if cfg.Email.Host == "" {
		return errors.Wrap(errors.ErrConfigInvalidNotify,
			"notifications.email.host must not be empty when email is enabled")
	}

	if cfg.Email.From == "" {
		return errors.Wrap(errors.ErrConfigInvalidNotify,
			"notifications.email.from must not be empty when email is enabled")
	}

	if cfg.Email.Port < 1 || cfg.Email.Port > 65535 {
		return errors.Wrapf(errors.ErrConfigInvalidNotify,
			"notifications.email.port must be a valid port, got %d", cfg.Email.Port)
	}

	return nil
}
