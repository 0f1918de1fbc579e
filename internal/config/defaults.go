package config

import (
	"github.com/mrz1836/gantry/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files and environment variables.
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			// StageTimeout: 30 minutes accommodates full test suites.
			// Uses the centralized constant for consistency.
			StageTimeout: constants.DefaultStageTimeout,

			// EnvironmentTimeout: 5 minutes covers an image pull on a
			// reasonable connection.
			EnvironmentTimeout: constants.DefaultEnvironmentTimeout,

			// HomeDir: empty means ~/.gantry.
			HomeDir: "",
		},
		Docker: DockerConfig{
			// Binary: "docker" resolved via PATH.
			Binary: "docker",

			// PullPolicy: "missing" avoids redundant pulls while still
			// working on a fresh host.
			PullPolicy: PullPolicyMissing,

			// KeepContainers: false keeps hosts clean; enable for debugging.
			KeepContainers: false,
		},
		Notifications: NotificationsConfig{
			// Bell: true gives immediate local feedback on failures.
			Bell: true,

			// Quiet: false, notifications enabled by default.
			Quiet: false,

			Email: EmailConfig{
				// Enabled: false until SMTP settings are provided.
				Enabled: false,

				// Port: 587 is the standard submission port (STARTTLS).
				Port: 587,

				// PasswordEnvVar: keeps the SMTP password out of config files.
				PasswordEnvVar: "GANTRY_SMTP_PASSWORD",
			},
		},
	}
}
