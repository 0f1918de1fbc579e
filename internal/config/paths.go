package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/errors"
)

// GlobalConfigDir returns the path to the global GANTRY configuration directory.
// This is typically ~/.gantry on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.GantryHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
// This is always .gantry relative to the project root.
func ProjectConfigDir() string {
	return constants.GantryHome
}

// GlobalConfigPath returns the full path to the global configuration file.
// This is typically ~/.gantry/config.yaml on Unix systems.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .gantry/config.yaml relative to the project root.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}

// HomeDir resolves the effective GANTRY home directory for the given config.
// The runner.home_dir setting takes precedence over the default ~/.gantry.
func HomeDir(cfg *Config) (string, error) {
	if cfg != nil && cfg.Runner.HomeDir != "" {
		return cfg.Runner.HomeDir, nil
	}
	return GlobalConfigDir()
}
