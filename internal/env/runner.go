// Package env provides isolated execution environments for pipeline stages.
//
// SECURITY NOTE: The commands executed by this package come from pipeline
// declaration files (gantry.yaml) in the working tree. These are treated as
// trusted input: anyone who can edit the pipeline file already has the same
// access as anyone who can edit a Makefile or CI config in the repository.
// The sh -c invocation is intentional to support shell features (pipes,
// redirects, &&) commonly used in test commands.
package env

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// CommandRunner defines the interface for executing host commands.
// Both providers go through it, so tests can substitute a mock and exercise
// docker orchestration without a docker daemon.
type CommandRunner interface {
	// Run executes a binary with arguments and returns its output.
	// A non-zero exit status is reported via exitCode with a nil err;
	// err is reserved for failures to start the process at all.
	Run(ctx context.Context, workDir, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// LiveOutputRunner is a CommandRunner that can also stream output while
// capturing it, used for long-running stage commands.
type LiveOutputRunner interface {
	CommandRunner
	// RunWithLiveOutput executes a command and streams combined output to
	// the writer while also capturing it.
	RunWithLiveOutput(ctx context.Context, workDir, name string, liveOut io.Writer, args ...string) (stdout, stderr string, exitCode int, err error)
}

// runThrough dispatches a command to the runner, streaming to liveOut when
// the runner supports it. Environments use it so stage output reaches the
// console while the command is still running, not just after it exits.
func runThrough(ctx context.Context, runner CommandRunner, workDir string, liveOut io.Writer, name string, args ...string) (stdout, stderr string, exitCode int, err error) {
	if lr, ok := runner.(LiveOutputRunner); ok && liveOut != nil {
		return lr.RunWithLiveOutput(ctx, workDir, name, liveOut, args...)
	}
	return runner.Run(ctx, workDir, name, args...)
}

// ExecRunner implements CommandRunner and LiveOutputRunner using os/exec.
type ExecRunner struct{}

// Run executes a binary with arguments.
func (r *ExecRunner) Run(ctx context.Context, workDir, name string, args ...string) (stdout, stderr string, exitCode int, err error) {
	return r.runCommand(ctx, workDir, name, nil, args...)
}

// RunWithLiveOutput executes a command and streams output to liveOut while also capturing it.
func (r *ExecRunner) RunWithLiveOutput(ctx context.Context, workDir, name string, liveOut io.Writer, args ...string) (stdout, stderr string, exitCode int, err error) {
	return r.runCommand(ctx, workDir, name, liveOut, args...)
}

// runCommand executes a command with optional live output streaming.
func (r *ExecRunner) runCommand(ctx context.Context, workDir, name string, liveOut io.Writer, args ...string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- binary and args are constructed by the providers, not raw user input
	cmd.Dir = workDir

	var outBuf, errBuf bytes.Buffer
	if liveOut != nil {
		cmd.Stdout = io.MultiWriter(&outBuf, liveOut)
		cmd.Stderr = io.MultiWriter(&errBuf, liveOut)
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err = cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is data, not an execution error.
			return stdout, stderr, exitErr.ExitCode(), nil
		}
		if ctx.Err() != nil {
			// Killed by timeout or cancellation before exiting.
			return stdout, stderr, -1, ctx.Err()
		}
		return stdout, stderr, -1, err
	}

	return stdout, stderr, 0, nil
}

// Ensure ExecRunner implements CommandRunner and LiveOutputRunner.
var (
	_ CommandRunner    = (*ExecRunner)(nil)
	_ LiveOutputRunner = (*ExecRunner)(nil)
)
