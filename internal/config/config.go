// Package config provides configuration management for GANTRY with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. Environment variables (GANTRY_* prefix)
//  2. Project config (.gantry/config.yaml)
//  3. Global config (~/.gantry/config.yaml)
//  4. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// Note this is runner configuration (how stages execute, where results go,
// how notifications are delivered), not the pipeline declaration itself —
// that lives in gantry.yaml and is handled by internal/pipeline.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for GANTRY.
// It contains all configuration sections for the application.
type Config struct {
	// Runner contains settings for stage execution.
	Runner RunnerConfig `yaml:"runner" mapstructure:"runner"`

	// Docker contains settings for the docker environment provider.
	Docker DockerConfig `yaml:"docker" mapstructure:"docker"`

	// Notifications contains settings for status-change notifications.
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}

// RunnerConfig contains settings for stage execution.
type RunnerConfig struct {
	// StageTimeout is the default maximum duration for a single stage's
	// command. Individual stages can override this in the pipeline file.
	// Default: 30 minutes
	StageTimeout time.Duration `yaml:"stage_timeout" mapstructure:"stage_timeout"`

	// EnvironmentTimeout is the maximum duration for acquiring a stage's
	// execution environment (e.g., docker create + start, including pulls).
	// Default: 5 minutes
	EnvironmentTimeout time.Duration `yaml:"environment_timeout" mapstructure:"environment_timeout"`

	// HomeDir overrides the GANTRY home directory (~/.gantry).
	// Empty means the default. Primarily for tests and sandboxed runs.
	HomeDir string `yaml:"home_dir,omitempty" mapstructure:"home_dir"`
}

// DockerConfig contains settings for the docker environment provider.
type DockerConfig struct {
	// Binary is the docker CLI binary to invoke.
	// Default: "docker" (resolved via PATH). Podman users can point this
	// at "podman" since the invoked subcommands are compatible.
	Binary string `yaml:"binary" mapstructure:"binary"`

	// PullPolicy controls image pulling before container creation.
	// One of "missing" (pull only if absent), "always", "never".
	// Default: "missing"
	PullPolicy string `yaml:"pull_policy" mapstructure:"pull_policy"`

	// KeepContainers disables container removal after a stage completes.
	// Useful for debugging a failed stage's filesystem. Default: false
	KeepContainers bool `yaml:"keep_containers" mapstructure:"keep_containers"`
}

// NotificationsConfig contains settings for status-change notifications.
type NotificationsConfig struct {
	// Bell enables a terminal bell when a run ends in failure.
	// Default: true
	Bell bool `yaml:"bell" mapstructure:"bell"`

	// Quiet suppresses all notifications (bell and email).
	// Default: false
	Quiet bool `yaml:"quiet" mapstructure:"quiet"`

	// Email contains SMTP delivery settings. Email notification only fires
	// when the pipeline declares a notify address and Enabled is true.
	Email EmailConfig `yaml:"email" mapstructure:"email"`
}

// EmailConfig contains SMTP settings for email notification delivery.
type EmailConfig struct {
	// Enabled turns email delivery on. Default: false
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// From is the sender address. Required when Enabled.
	From string `yaml:"from" mapstructure:"from"`

	// Host is the SMTP server hostname. Required when Enabled.
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the SMTP server port. Default: 587
	Port int `yaml:"port" mapstructure:"port"`

	// Username authenticates against the SMTP server. Empty disables auth.
	Username string `yaml:"username" mapstructure:"username"`

	// PasswordEnvVar names the environment variable holding the SMTP
	// password. The password itself never lives in config files.
	// Default: "GANTRY_SMTP_PASSWORD"
	PasswordEnvVar string `yaml:"password_env_var" mapstructure:"password_env_var"`
}

// Valid docker pull policies.
const (
	PullPolicyMissing = "missing"
	PullPolicyAlways  = "always"
	PullPolicyNever   = "never"
)
