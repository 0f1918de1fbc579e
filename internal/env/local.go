package env

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// LocalProvider serves the "local" scheme: stage commands run directly on
// the host in the stage workdir. There is no isolation beyond a fresh shell,
// which is exactly what small self-hosted runners want.
type LocalProvider struct {
	runner CommandRunner
	logger zerolog.Logger
}

// NewLocalProvider creates a provider for host execution.
func NewLocalProvider(runner CommandRunner, logger zerolog.Logger) *LocalProvider {
	return &LocalProvider{
		runner: runner,
		logger: logger.With().Str("provider", "local").Logger(),
	}
}

// Scheme returns "local".
func (p *LocalProvider) Scheme() string {
	return "local"
}

// Acquire returns a host environment rooted at workdir. Host acquisition
// cannot fail: there is nothing to provision.
func (p *LocalProvider) Acquire(_ context.Context, ref Ref, workdir string) (Environment, error) {
	p.logger.Debug().Str("workdir", workdir).Msg("acquired host environment")
	return &hostEnvironment{
		ref:     ref,
		workdir: workdir,
		runner:  p.runner,
		logger:  p.logger,
	}, nil
}

// hostEnvironment runs commands on the host via sh -c.
type hostEnvironment struct {
	ref     Ref
	workdir string
	runner  CommandRunner
	logger  zerolog.Logger
}

// Ref returns the reference this environment was acquired for.
func (e *hostEnvironment) Ref() Ref {
	return e.ref
}

// Run executes the command in the workdir with the extra environment
// variables prefixed onto the shell invocation.
func (e *hostEnvironment) Run(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	script := command
	if len(opts.Env) > 0 {
		script = exportPrefix(opts.Env) + command
	}

	stdout, stderr, exitCode, err := runThrough(ctx, e.runner, e.workdir, opts.LiveOutput, "sh", "-c", script)
	if err != nil && ctx.Err() != nil {
		// Timeout or cancellation: report as a failed command, not an error.
		return ExecResult{ExitCode: -1, Output: stdout + stderr}, nil
	}
	if err != nil {
		return ExecResult{ExitCode: -1, Output: stdout + stderr}, err
	}

	return ExecResult{ExitCode: exitCode, Output: stdout + stderr}, nil
}

// Close is a no-op for host environments.
func (e *hostEnvironment) Close(_ context.Context) error {
	return nil
}

// exportPrefix renders a deterministic "export K='v'; " prefix for the
// given variables. Sorted so identical declarations produce identical
// invocations in logs and tests.
func exportPrefix(envs map[string]string) string {
	keys := make([]string, 0, len(envs))
	for k := range envs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	prefix := ""
	for _, k := range keys {
		prefix += fmt.Sprintf("export %s=%s; ", k, shellQuote(envs[k]))
	}
	return prefix
}

// shellQuote single-quotes a value for safe inclusion in an sh -c script.
func shellQuote(s string) string {
	quoted := "'"
	for _, r := range s {
		if r == '\'' {
			quoted += `'\''`
			continue
		}
		quoted += string(r)
	}
	return quoted + "'"
}

// Ensure LocalProvider implements Provider.
var _ Provider = (*LocalProvider)(nil)
