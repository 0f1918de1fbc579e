// Package env provides isolated execution environments for pipeline stages.
//
// An environment reference in a stage declaration selects a provider by
// scheme: "docker://IMAGE" provisions a throwaway container, "local" runs on
// the host. Providers are resolved at stage-execution time through a
// Registry, so new environment kinds plug in without touching the engine.
//
// Acquisition is scoped: every acquired Environment must be closed, and the
// engine guarantees Close runs on all exit paths, including command timeout
// and run cancellation.
package env

import (
	"context"
	"io"
	"strings"

	"github.com/mrz1836/gantry/internal/errors"
)

// Ref is a parsed environment reference.
type Ref struct {
	// Scheme selects the provider ("docker", "local").
	Scheme string

	// Image is the scheme-specific remainder, e.g. the docker image name.
	// Empty for the local scheme.
	Image string
}

// String reassembles the reference in its declaration form.
func (r Ref) String() string {
	if r.Image == "" {
		return r.Scheme
	}
	return r.Scheme + "://" + r.Image
}

// ParseRef parses an environment reference string.
// Recognized forms: "docker://IMAGE", "local". A bare non-empty string
// without a scheme separator is rejected rather than guessed at.
func ParseRef(ref string) (Ref, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Ref{}, errors.Wrap(errors.ErrUnknownEnvironment, "empty environment reference")
	}

	if scheme, rest, ok := strings.Cut(ref, "://"); ok {
		if rest == "" {
			return Ref{}, errors.Wrapf(errors.ErrUnknownEnvironment,
				"environment reference %q has no image", ref)
		}
		return Ref{Scheme: scheme, Image: rest}, nil
	}

	if ref == "local" {
		return Ref{Scheme: "local"}, nil
	}

	return Ref{}, errors.Wrapf(errors.ErrUnknownEnvironment,
		"environment reference %q has no recognized scheme", ref)
}

// ExecResult is the outcome of running a command inside an environment.
type ExecResult struct {
	// ExitCode is the command's exit code. -1 when the command was killed
	// before exiting (timeout, cancellation).
	ExitCode int

	// Output is the combined stdout and stderr of the command.
	Output string
}

// RunOptions carries per-command settings into Environment.Run.
type RunOptions struct {
	// Env holds extra environment variables exported to the command.
	Env map[string]string

	// LiveOutput, when non-nil, receives the command's combined output as
	// it is produced, in addition to the capture in ExecResult. Requires a
	// runner that supports streaming; otherwise output is only captured.
	LiveOutput io.Writer
}

// Environment is an acquired, exclusively-owned execution context for one
// stage. Run executes commands synchronously; Close releases the underlying
// resources and must be called exactly once.
type Environment interface {
	// Ref returns the reference this environment was acquired for.
	Ref() Ref

	// Run executes a shell command to completion inside the environment.
	// A non-zero exit status is data in the ExecResult, not an error; the
	// error return is reserved for failures to execute at all.
	Run(ctx context.Context, command string, opts RunOptions) (ExecResult, error)

	// Close tears the environment down. Safe to call with an expired run
	// context; implementations use their own teardown deadline.
	Close(ctx context.Context) error
}

// Provider acquires environments for a single scheme.
type Provider interface {
	// Scheme returns the reference scheme this provider serves.
	Scheme() string

	// Acquire provisions an environment for the given reference, rooted at
	// workdir. Failure is ENVIRONMENT_UNAVAILABLE: callers must treat it as
	// fatal to the stage.
	Acquire(ctx context.Context, ref Ref, workdir string) (Environment, error)
}

// Registry maps environment schemes to providers, resolved at
// stage-execution time.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given providers.
// Later providers with a duplicate scheme replace earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Scheme()] = p
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Scheme()] = p
}

// Acquire parses the reference, resolves its provider, and acquires an
// environment. An unknown scheme is ENVIRONMENT_UNAVAILABLE like any other
// acquisition failure: the declaration named an environment the runner
// cannot supply.
func (r *Registry) Acquire(ctx context.Context, reference, workdir string) (Environment, error) {
	ref, err := ParseRef(reference)
	if err != nil {
		return nil, errors.Wrap(errors.ErrEnvironmentUnavailable, err.Error())
	}

	p, ok := r.providers[ref.Scheme]
	if !ok {
		return nil, errors.Wrapf(errors.ErrEnvironmentUnavailable,
			"no provider registered for scheme %q", ref.Scheme)
	}

	environment, err := p.Acquire(ctx, ref, workdir)
	if err != nil {
		return nil, err
	}
	return environment, nil
}
