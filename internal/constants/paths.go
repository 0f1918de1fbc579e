package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.gantry/logs/gantry.log
	CLILogFileName = "gantry.log"

	// StageLogFileName is the name of the log file that captures a stage's
	// full command output within a run directory.
	StageLogFileName = "stage.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global GANTRY configuration file.
	// This file is located in the GANTRY home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project-specific GANTRY configuration
	// file. This file is located in the project root directory.
	ProjectConfigName = ".gantry.yaml"
)

// Environment reference schemes recognized by the environment registry.
const (
	// EnvSchemeDocker selects the docker provider ("docker://python:3.12").
	EnvSchemeDocker = "docker"

	// EnvSchemeLocal selects the host provider ("local").
	EnvSchemeLocal = "local"
)
