// Package engine provides pipeline run persistence and orchestration.
//
// This file implements the Engine, which runs a pipeline's stages strictly
// in declaration order with fail-fast semantics: each stage is a gate, and
// the first failure stops the run. The engine coordinates environment
// acquisition, report collection, result persistence, and status-change
// notification.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/ctxutil,
//     internal/domain, internal/env, internal/errors, internal/logging,
//     internal/notify, internal/report, std lib
//   - MUST NOT import: internal/cli, internal/config, internal/pipeline
package engine

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gantry/internal/clock"
	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/ctxutil"
	"github.com/mrz1836/gantry/internal/domain"
	"github.com/mrz1836/gantry/internal/env"
	gantryerrors "github.com/mrz1836/gantry/internal/errors"
	"github.com/mrz1836/gantry/internal/logging"
	"github.com/mrz1836/gantry/internal/notify"
	"github.com/mrz1836/gantry/internal/report"
)

// EngineConfig holds configuration for the Engine.
type EngineConfig struct {
	// StageTimeout bounds a stage command when the stage declares none.
	StageTimeout time.Duration

	// EnvironmentTimeout bounds environment acquisition per stage.
	EnvironmentTimeout time.Duration

	// Workdir is the default working directory for stages that declare
	// none. Usually the directory the runner was invoked from.
	Workdir string
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StageTimeout:       constants.DefaultStageTimeout,
		EnvironmentTimeout: constants.DefaultEnvironmentTimeout,
	}
}

// Engine orchestrates pipeline execution. It runs stages sequentially
// through acquired environments, checkpoints each stage result, persists
// the run, and fires change notifications.
type Engine struct {
	store       Store
	registry    *env.Registry
	collector   *report.Collector
	dispatcher  *notify.Dispatcher
	config      EngineConfig
	clk         clock.Clock
	logger      zerolog.Logger
	stageOutput io.Writer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDispatcher sets the notification dispatcher for the engine.
// Without one, runs complete silently.
func WithDispatcher(d *notify.Dispatcher) EngineOption {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithClock sets the time source for the engine. Tests use a fake clock
// to make stage timestamps deterministic.
func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithStageOutput streams stage command output to w as it is produced,
// in addition to capturing it in the stage result. Without it, output is
// only captured.
func WithStageOutput(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.stageOutput = w
	}
}

// NewEngine creates a new pipeline engine with the given dependencies.
// The store persists run results, the registry resolves environment
// providers, and the collector gathers stage report artifacts. Optional
// EngineOption functions configure notification and the time source.
func NewEngine(store Store, registry *env.Registry, collector *report.Collector, cfg EngineConfig, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		registry:  registry,
		collector: collector,
		config:    cfg,
		clk:       clock.RealClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a pipeline run end to end and returns its result.
//
// Stages execute strictly in declaration order. The first stage that fails
// or errors stops the run: later stages are never acquired and do not appear
// in the result. The result is persisted before notification so a crash in
// delivery can never lose the run record. The returned error reports
// infrastructure problems (persistence), not stage failures: a run that
// completed with failing stages returns a FAILURE result and a nil error.
func (e *Engine) Run(ctx context.Context, p *domain.Pipeline) (*domain.PipelineResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	previous := e.loadPrevious(ctx, p.Name)
	runID := e.nextRunID(ctx, p.Name)

	logger := e.logger.With().
		Str("pipeline", p.Name).
		Str("run_id", runID).
		Logger()
	logger.Info().Int("stages", len(p.Stages)).Msg("starting pipeline run")

	result := &domain.PipelineResult{
		RunID:     runID,
		Pipeline:  p.Name,
		StartedAt: e.clk.Now().UTC(),
	}

	for i := range p.Stages {
		stage := &p.Stages[i]

		if ctx.Err() != nil {
			logger.Warn().Str("stage", stage.Name).Msg("run canceled before stage")
			break
		}

		sr := e.runStage(ctx, logger, p.Name, runID, stage)
		result.StageResults = append(result.StageResults, sr)
		e.checkpoint(logger, result)

		if sr.Status != constants.StageStatusPassed {
			logger.Warn().
				Str("stage", sr.Name).
				Str("status", sr.Status.String()).
				Int("exit_code", sr.ExitCode).
				Msg("stage failed, skipping remaining stages")
			break
		}
	}

	result.Status = domain.ComputeStatus(result.StageResults)
	if len(result.StageResults) == 0 {
		// A run that never executed a stage cannot be a success.
		result.Status = constants.PipelineStatusFailure
	}
	result.FinishedAt = e.clk.Now().UTC()

	// Persistence and notification run on a fresh context, like environment
	// teardown: an interrupted run must still leave a record and report the
	// status change, or the next run compares against a stale status.
	finishCtx, cancelFinish := context.WithTimeout(context.Background(), constants.ResultPersistTimeout)
	defer cancelFinish()

	saveErr := e.store.Save(finishCtx, result)
	if saveErr != nil {
		logger.Error().Err(saveErr).Msg("failed to persist run result")
	}

	if e.dispatcher != nil {
		e.dispatcher.NotifyIfChanged(finishCtx, p, result, previous)
	}

	logger.Info().
		Str("status", result.Status.String()).
		Int("stages_run", len(result.StageResults)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("pipeline run finished")

	if saveErr != nil {
		return result, gantryerrors.Wrap(saveErr, "run completed but result was not persisted")
	}
	return result, nil
}

// checkpoint persists an interim snapshot of the run after each completed
// stage, on a fresh context so a canceled run still checkpoints. The snapshot
// carries a failure status: a run still in progress must never read as green.
// Checkpoint failures are logged, not returned; the final save is the
// authoritative write.
func (e *Engine) checkpoint(logger zerolog.Logger, result *domain.PipelineResult) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ResultPersistTimeout)
	defer cancel()

	snapshot := *result
	snapshot.Status = constants.PipelineStatusFailure
	if err := e.store.Checkpoint(ctx, &snapshot); err != nil {
		logger.Warn().Err(err).Msg("failed to checkpoint run")
	}
}

// runStage executes one stage: acquire environment, run command, collect
// reports, tear down. Teardown is guaranteed on every exit path, including
// command timeout and run cancellation.
func (e *Engine) runStage(ctx context.Context, logger zerolog.Logger, pipelineName, runID string, stage *domain.StageSpec) domain.StageResult {
	sr := domain.StageResult{
		Name:        stage.Name,
		Environment: stage.Environment,
		Status:      constants.StageStatusRunning,
		StartedAt:   e.clk.Now().UTC(),
	}

	stageLogger := logger.With().Str("stage", stage.Name).Logger()
	stageLogger.Info().
		Str("environment", stage.Environment).
		Str("command", logging.SafeValue("command", stage.Command)).
		Msg("running stage")

	workdir := stage.Workdir
	if workdir == "" {
		workdir = e.config.Workdir
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, e.config.EnvironmentTimeout)
	environment, err := e.registry.Acquire(acquireCtx, stage.Environment, workdir)
	cancelAcquire()
	if err != nil {
		stageLogger.Error().Err(err).Msg("environment unavailable")
		sr.Status = constants.StageStatusError
		sr.ExitCode = -1
		sr.Error = err.Error()
		sr.FinishedAt = e.clk.Now().UTC()
		return sr
	}

	defer func() {
		// Teardown on a fresh context so a canceled run still releases
		// the environment.
		closeCtx, cancelClose := context.WithTimeout(context.Background(), constants.EnvironmentTeardownTimeout)
		defer cancelClose()
		if cerr := environment.Close(closeCtx); cerr != nil {
			stageLogger.Warn().Err(cerr).Msg("environment teardown failed")
		}
	}()

	runCtx, cancelRun := context.WithTimeout(ctx, stage.EffectiveTimeout(e.config.StageTimeout))
	defer cancelRun()

	execResult, err := environment.Run(runCtx, stage.Command, env.RunOptions{
		Env:        stage.Env,
		LiveOutput: e.stageOutput,
	})
	if err != nil {
		stageLogger.Error().Err(err).Msg("stage command could not execute")
		sr.Status = constants.StageStatusError
		sr.ExitCode = -1
		sr.Error = err.Error()
		sr.OutputTail = tail(execResult.Output)
		sr.FinishedAt = e.clk.Now().UTC()
		return sr
	}

	sr.ExitCode = execResult.ExitCode
	sr.OutputTail = tail(execResult.Output)
	if execResult.ExitCode == 0 {
		sr.Status = constants.StageStatusPassed
	} else {
		sr.Status = constants.StageStatusFailed
	}

	// Collect declared reports even on failure: failing tests are exactly
	// when the junit file matters. Collection problems never change the
	// stage outcome.
	if len(stage.Reports) > 0 {
		paths, summary, cerr := e.collector.Collect(ctx, workdir, e.store.ReportDir(pipelineName, runID), stage.Reports)
		if cerr != nil {
			stageLogger.Warn().Err(cerr).Msg("report collection failed")
		}
		sr.ReportPaths = paths
		sr.Reports = summary
	}

	sr.FinishedAt = e.clk.Now().UTC()
	stageLogger.Info().
		Str("status", sr.Status.String()).
		Int("exit_code", sr.ExitCode).
		Dur("duration", sr.Duration()).
		Msg("stage finished")

	return sr
}

// loadPrevious fetches the previous run result for change detection.
// A pipeline with no history, or an unreadable history, runs as a first run.
func (e *Engine) loadPrevious(ctx context.Context, pipelineName string) *domain.PipelineResult {
	previous, err := e.store.Latest(ctx, pipelineName)
	if err != nil {
		if !stderrors.Is(err, gantryerrors.ErrNoPreviousRun) {
			e.logger.Warn().Err(err).Str("pipeline", pipelineName).Msg("failed to load previous run")
		}
		return nil
	}
	return previous
}

// nextRunID picks a run ID unique among the pipeline's recorded runs.
func (e *Engine) nextRunID(ctx context.Context, pipelineName string) string {
	existing := make(map[string]bool)
	if results, err := e.store.List(ctx, pipelineName); err == nil {
		for _, r := range results {
			existing[r.RunID] = true
		}
	}
	return GenerateRunIDUnique(existing)
}

// tail returns the last constants.OutputTailLimit bytes of s.
func tail(s string) string {
	if len(s) <= constants.OutputTailLimit {
		return s
	}
	return s[len(s)-constants.OutputTailLimit:]
}
