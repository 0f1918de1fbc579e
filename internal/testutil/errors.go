// Package testutil provides testing utilities for GANTRY.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockDockerDown indicates a mock docker daemon failure (used in tests).
	ErrMockDockerDown = errors.New("cannot connect to the docker daemon")

	// ErrMockExecFailed indicates a mock command execution failure (used in tests).
	ErrMockExecFailed = errors.New("exec failed")

	// ErrMockSMTP indicates a mock SMTP delivery failure (used in tests).
	ErrMockSMTP = errors.New("smtp connection refused")

	// ErrMockStoreUnavailable indicates a mock run store is unavailable (used in tests).
	ErrMockStoreUnavailable = errors.New("run store unavailable")

	// ErrMockNotFound indicates a mock resource was not found (used in tests).
	ErrMockNotFound = errors.New("not found")
)
