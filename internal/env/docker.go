package env

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/gantry/internal/config"
	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/errors"
	"github.com/mrz1836/gantry/internal/logging"
)

// containerWorkdir is where the stage workdir is mounted inside containers.
const containerWorkdir = "/workspace"

// DockerProvider serves the "docker" scheme: each acquisition creates a
// fresh container from the referenced image, with the stage workdir bind
// mounted at /workspace. The container idles until Run execs the stage
// command into it, and Close removes it.
//
// Orchestration goes through the docker CLI rather than the daemon API: it is
// what every host with docker has, it works identically with podman, and the
// CommandRunner seam keeps it testable.
type DockerProvider struct {
	runner CommandRunner
	cfg    config.DockerConfig
	logger zerolog.Logger
}

// NewDockerProvider creates a provider using the given docker configuration.
func NewDockerProvider(runner CommandRunner, cfg config.DockerConfig, logger zerolog.Logger) *DockerProvider {
	return &DockerProvider{
		runner: runner,
		cfg:    cfg,
		logger: logger.With().Str("provider", "docker").Logger(),
	}
}

// Scheme returns "docker".
func (p *DockerProvider) Scheme() string {
	return "docker"
}

// Acquire pulls the image per the configured policy, then creates and starts
// an idling container. Any failure is ENVIRONMENT_UNAVAILABLE.
func (p *DockerProvider) Acquire(ctx context.Context, ref Ref, workdir string) (Environment, error) {
	if err := p.ensureImage(ctx, ref.Image); err != nil {
		return nil, err
	}

	name := "gantry-" + uuid.NewString()[:8]

	createArgs := []string{
		"create",
		"--name", name,
		"--workdir", containerWorkdir,
		"-v", workdir + ":" + containerWorkdir,
		ref.Image,
		"sleep", "infinity",
	}
	if _, stderr, exitCode, err := p.runner.Run(ctx, "", p.cfg.Binary, createArgs...); err != nil || exitCode != 0 {
		return nil, acquireError(err, stderr, "failed to create container for image "+ref.Image)
	}

	if _, stderr, exitCode, err := p.runner.Run(ctx, "", p.cfg.Binary, "start", name); err != nil || exitCode != 0 {
		// Creation succeeded, so the half-made container must go.
		p.removeContainer(name)
		return nil, acquireError(err, stderr, "failed to start container for image "+ref.Image)
	}

	p.logger.Debug().
		Str("container", name).
		Str("image", logging.SafeValue("image", ref.Image)).
		Msg("acquired container environment")

	return &containerEnvironment{
		ref:      ref,
		name:     name,
		provider: p,
	}, nil
}

// ensureImage applies the configured pull policy before container creation.
func (p *DockerProvider) ensureImage(ctx context.Context, image string) error {
	switch p.cfg.PullPolicy {
	case config.PullPolicyNever:
		return nil
	case config.PullPolicyMissing:
		if _, _, exitCode, err := p.runner.Run(ctx, "", p.cfg.Binary, "image", "inspect", image); err == nil && exitCode == 0 {
			return nil
		}
	case config.PullPolicyAlways:
	}

	p.logger.Info().Str("image", logging.SafeValue("image", image)).Msg("pulling image")
	if _, stderr, exitCode, err := p.runner.Run(ctx, "", p.cfg.Binary, "pull", image); err != nil || exitCode != 0 {
		return acquireError(err, stderr, "failed to pull image "+image)
	}
	return nil
}

// removeContainer force-removes a container on a fresh teardown context.
// Removal failures are logged, not returned: a leaked container must not
// mask the failure that triggered cleanup.
func (p *DockerProvider) removeContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.EnvironmentTeardownTimeout)
	defer cancel()

	if _, stderr, exitCode, err := p.runner.Run(ctx, "", p.cfg.Binary, "rm", "-f", name); err != nil || exitCode != 0 {
		p.logger.Warn().
			Str("container", name).
			Str("stderr", strings.TrimSpace(stderr)).
			Err(err).
			Msg("failed to remove container")
	}
}

// acquireError normalizes a docker CLI failure into ErrEnvironmentUnavailable.
func acquireError(err error, stderr, msg string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}
	if detail != "" {
		return errors.Wrapf(errors.ErrEnvironmentUnavailable, "%s: %s", msg, detail)
	}
	return errors.Wrap(errors.ErrEnvironmentUnavailable, msg)
}

// containerEnvironment execs stage commands into an idling container.
type containerEnvironment struct {
	ref      Ref
	name     string
	provider *DockerProvider
	closed   bool
}

// Ref returns the reference this environment was acquired for.
func (e *containerEnvironment) Ref() Ref {
	return e.ref
}

// Run execs the command into the container via sh -c. The command's exit
// code propagates through docker exec unchanged.
func (e *containerEnvironment) Run(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	args := []string{"exec"}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}
	args = append(args, e.name, "sh", "-c", command)

	stdout, stderr, exitCode, err := runThrough(ctx, e.provider.runner, "", opts.LiveOutput, e.provider.cfg.Binary, args...)
	if err != nil && ctx.Err() != nil {
		// Timeout or cancellation: report as a failed command, not an error.
		return ExecResult{ExitCode: -1, Output: stdout + stderr}, nil
	}
	if err != nil {
		return ExecResult{ExitCode: -1, Output: stdout + stderr}, err
	}

	return ExecResult{ExitCode: exitCode, Output: stdout + stderr}, nil
}

// Close removes the container unless keep_containers is set. Idempotent:
// a second Close is a no-op.
func (e *containerEnvironment) Close(_ context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.provider.cfg.KeepContainers {
		e.provider.logger.Info().
			Str("container", e.name).
			Msg("keep_containers set, leaving container in place")
		return nil
	}

	e.provider.removeContainer(e.name)
	return nil
}

// sortedKeys returns the map's keys in sorted order for deterministic
// docker invocations.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ensure DockerProvider implements Provider.
var _ Provider = (*DockerProvider)(nil)
