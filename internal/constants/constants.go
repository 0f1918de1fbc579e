// Package constants provides centralized constant values used throughout GANTRY.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// File names used by GANTRY for state persistence.
const (
	// ResultFileName is the name of the JSON file that stores a pipeline run result.
	ResultFileName = "result.json"

	// LatestFileName is the name of the JSON file that mirrors the most recent
	// run result for a pipeline. It is what change detection compares against.
	LatestFileName = "latest.json"

	// PipelineFileName is the default name of the pipeline declaration file,
	// looked up in the current working directory.
	PipelineFileName = "gantry.yaml"
)

// Directory names and paths used by GANTRY for organizing data.
const (
	// GantryHome is the hidden directory name where GANTRY stores all its data.
	// This directory is created in the user's home directory.
	GantryHome = ".gantry"

	// RunsDir is the directory name where run results are stored, one
	// subdirectory per pipeline name.
	RunsDir = "runs"

	// ReportsDir is the directory name where collected report artifacts are
	// stored within a run directory.
	ReportsDir = "reports"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Timeout configurations for various operations.
const (
	// DefaultStageTimeout is the default maximum duration for a single stage's
	// command. Stages can override this in the pipeline file.
	DefaultStageTimeout = 30 * time.Minute

	// DefaultEnvironmentTimeout is the default maximum duration for acquiring
	// an execution environment (e.g., docker create + start).
	DefaultEnvironmentTimeout = 5 * time.Minute

	// EnvironmentTeardownTimeout bounds environment cleanup. Teardown runs on
	// a fresh context so a canceled stage still releases its container.
	EnvironmentTeardownTimeout = 1 * time.Minute

	// ResultPersistTimeout bounds run result writes. Persistence runs on a
	// fresh context so a canceled run still leaves a record behind.
	ResultPersistTimeout = 30 * time.Second
)

// Schema version constants for data migration support.
const (
	// ResultSchemaVersion is the current version of the run result JSON schema.
	// This enables forward-compatible schema migrations.
	ResultSchemaVersion = "1.0"
)

// OutputTailLimit is the maximum number of bytes of combined command output
// retained in a stage result. Full output always goes to the run log.
const OutputTailLimit = 8 * 1024

// Log rotation settings for the global CLI log file.
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age in days of a rotated file.
	LogMaxAgeDays = 28

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)
