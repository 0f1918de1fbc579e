// Package errors provides centralized error handling for GANTRY.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrEnvironmentUnavailable indicates that a stage's execution environment
	// could not be acquired (image pull failed, container would not start,
	// unknown provider scheme at acquisition time). Fatal to the stage and
	// to the pipeline run.
	ErrEnvironmentUnavailable = errors.New("execution environment unavailable")

	// ErrPipelineFailed indicates that the pipeline run completed with an
	// overall FAILURE status.
	ErrPipelineFailed = errors.New("pipeline failed")

	// ErrNotificationFailed indicates that notification delivery failed.
	// Always logged, never fatal to the run.
	ErrNotificationFailed = errors.New("notification delivery failed")

	// ErrUnknownEnvironment indicates that an environment reference uses a
	// scheme with no registered provider.
	ErrUnknownEnvironment = errors.New("unknown environment scheme")

	// ErrRunNotFound indicates that a requested run result does not exist
	// in the store.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists indicates an attempt to create a run result that already
	// exists in the store.
	ErrRunExists = errors.New("run already exists")

	// ErrNoPreviousRun indicates that a pipeline has no recorded previous
	// result to compare against.
	ErrNoPreviousRun = errors.New("no previous run")

	// ErrPipelineNotFound indicates that the pipeline declaration file was
	// not found.
	ErrPipelineNotFound = errors.New("pipeline file not found")

	// ErrInvalidPipeline indicates that the pipeline declaration failed
	// validation (duplicate stage names, empty commands, bad refs).
	ErrInvalidPipeline = errors.New("invalid pipeline")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidNotify indicates an invalid notification configuration value.
	ErrConfigInvalidNotify = errors.New("invalid notification configuration")

	// ErrConfigInvalidRunner indicates an invalid runner configuration value.
	ErrConfigInvalidRunner = errors.New("invalid runner configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrLockTimeout indicates that a file lock could not be acquired
	// within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")
)
