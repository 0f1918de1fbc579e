package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gantry/internal/clock"
	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/domain"
	"github.com/mrz1836/gantry/internal/env"
	gantryerrors "github.com/mrz1836/gantry/internal/errors"
	"github.com/mrz1836/gantry/internal/notify"
	"github.com/mrz1836/gantry/internal/report"
	"github.com/mrz1836/gantry/internal/testutil"
)

// stageScript describes the outcome a fake environment reports for a command.
type stageScript struct {
	exitCode int
	output   string
}

// fakeProvider serves the "docker" scheme with scripted environments,
// recording acquisitions and teardowns.
type fakeProvider struct {
	mu       sync.Mutex
	scripts  map[string]stageScript // keyed by command
	failRefs map[string]bool        // environments that refuse to come up
	acquired []string
	closed   int
	onRun    func(command string) // invoked before a scripted command answers
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		scripts:  make(map[string]stageScript),
		failRefs: make(map[string]bool),
	}
}

func (p *fakeProvider) Scheme() string { return "docker" }

func (p *fakeProvider) Acquire(_ context.Context, ref env.Ref, _ string) (env.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failRefs[ref.Image] {
		return nil, gantryerrors.Wrap(gantryerrors.ErrEnvironmentUnavailable, testutil.ErrMockDockerDown.Error())
	}
	p.acquired = append(p.acquired, ref.Image)
	return &fakeEnvironment{ref: ref, provider: p}, nil
}

func (p *fakeProvider) acquisitions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.acquired))
	copy(out, p.acquired)
	return out
}

func (p *fakeProvider) teardowns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeEnvironment struct {
	ref      env.Ref
	provider *fakeProvider
}

func (e *fakeEnvironment) Ref() env.Ref { return e.ref }

func (e *fakeEnvironment) Run(_ context.Context, command string, opts env.RunOptions) (env.ExecResult, error) {
	e.provider.mu.Lock()
	script := e.provider.scripts[command]
	hook := e.provider.onRun
	e.provider.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	if opts.LiveOutput != nil {
		_, _ = opts.LiveOutput.Write([]byte(script.output))
	}
	return env.ExecResult{ExitCode: script.exitCode, Output: script.output}, nil
}

func (e *fakeEnvironment) Close(_ context.Context) error {
	e.provider.mu.Lock()
	defer e.provider.mu.Unlock()
	e.provider.closed++
	return nil
}

// recordingNotifier counts deliveries through the dispatcher.
type recordingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, _ *domain.Pipeline, _, _ *domain.PipelineResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return nil
}

func (n *recordingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

// testHarness bundles an engine with its collaborators.
type testHarness struct {
	engine   *Engine
	store    *FileStore
	provider *fakeProvider
	notifier *recordingNotifier
	workdir  string
}

func newTestHarness(t *testing.T, opts ...EngineOption) *testHarness {
	t.Helper()

	store := newTestStore(t)
	provider := newFakeProvider()
	notifier := &recordingNotifier{}
	workdir := t.TempDir()

	cfg := DefaultEngineConfig()
	cfg.Workdir = workdir

	engineOpts := append([]EngineOption{
		WithDispatcher(notify.NewDispatcher(zerolog.Nop(), false, notifier)),
		WithClock(clock.NewFakeClock(time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC))),
	}, opts...)

	eng := NewEngine(
		store,
		env.NewRegistry(provider),
		report.NewCollector(zerolog.Nop()),
		cfg,
		zerolog.Nop(),
		engineOpts...,
	)

	return &testHarness{engine: eng, store: store, provider: provider, notifier: notifier, workdir: workdir}
}

func threeStagePipeline() *domain.Pipeline {
	return &domain.Pipeline{
		Name: "tvb-tests",
		Stages: []domain.StageSpec{
			{Name: "lint", Environment: "docker://python:3.12", Command: "flake8 tvb"},
			{Name: "python2-tests", Environment: "docker://python:2.7", Command: "pytest2"},
			{Name: "python3-tests", Environment: "docker://python:3.12", Command: "pytest3"},
		},
	}
}

func TestEngineRunAllStagesPass(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	result, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	assert.Equal(t, constants.PipelineStatusSuccess, result.Status)
	require.Len(t, result.StageResults, 3)
	for _, sr := range result.StageResults {
		assert.Equal(t, constants.StageStatusPassed, sr.Status)
		assert.Equal(t, 0, sr.ExitCode)
	}

	// One environment acquired and torn down per stage.
	assert.Equal(t, []string{"python:3.12", "python:2.7", "python:3.12"}, h.provider.acquisitions())
	assert.Equal(t, 3, h.provider.teardowns())

	// The run is persisted and readable as the latest result.
	latest, err := h.store.Latest(context.Background(), "tvb-tests")
	require.NoError(t, err)
	assert.Equal(t, result.RunID, latest.RunID)
}

func TestEngineRunFailFast(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.provider.scripts["pytest2"] = stageScript{exitCode: 1, output: "2 failed\n"}

	result, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	assert.Equal(t, constants.PipelineStatusFailure, result.Status)
	require.Len(t, result.StageResults, 2)
	assert.Equal(t, constants.StageStatusPassed, result.StageResults[0].Status)
	assert.Equal(t, constants.StageStatusFailed, result.StageResults[1].Status)
	assert.Equal(t, 1, result.StageResults[1].ExitCode)
	assert.Equal(t, "2 failed\n", result.StageResults[1].OutputTail)

	// The third stage's environment was never acquired.
	assert.Equal(t, []string{"python:3.12", "python:2.7"}, h.provider.acquisitions())
	assert.Equal(t, 2, h.provider.teardowns())
}

func TestEngineRunEnvironmentUnavailable(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.provider.failRefs["python:2.7"] = true

	result, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	assert.Equal(t, constants.PipelineStatusFailure, result.Status)
	require.Len(t, result.StageResults, 2)

	errored := result.StageResults[1]
	assert.Equal(t, constants.StageStatusError, errored.Status)
	assert.Equal(t, -1, errored.ExitCode)
	assert.Contains(t, errored.Error, "docker daemon")

	// Only the first stage's environment existed to tear down.
	assert.Equal(t, 1, h.provider.teardowns())
}

func TestEngineRunCollectsReports(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.workdir, "results.xml"),
		[]byte(`<testsuite tests="37" failures="1" skipped="2"/>`), 0o600))

	p := &domain.Pipeline{
		Name: "tvb-tests",
		Stages: []domain.StageSpec{
			{Name: "python3-tests", Environment: "docker://python:3.12", Command: "pytest3", Reports: []string{"results.xml"}},
		},
	}

	result, err := h.engine.Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, result.StageResults, 1)
	sr := result.StageResults[0]
	require.Len(t, sr.ReportPaths, 1)
	assert.FileExists(t, sr.ReportPaths[0])
	assert.True(t, strings.HasPrefix(sr.ReportPaths[0], h.store.ReportDir("tvb-tests", result.RunID)))

	require.NotNil(t, sr.Reports)
	assert.Equal(t, domain.ReportSummary{Tests: 37, Failures: 1, Skipped: 2}, *sr.Reports)
}

func TestEngineRunReportsCollectedOnFailure(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	h.provider.scripts["pytest3"] = stageScript{exitCode: 1, output: "1 failed\n"}
	require.NoError(t, os.WriteFile(filepath.Join(h.workdir, "results.xml"),
		[]byte(`<testsuite tests="10" failures="1"/>`), 0o600))

	p := &domain.Pipeline{
		Name: "tvb-tests",
		Stages: []domain.StageSpec{
			{Name: "python3-tests", Environment: "docker://python:3.12", Command: "pytest3", Reports: []string{"results.xml"}},
		},
	}

	result, err := h.engine.Run(context.Background(), p)
	require.NoError(t, err)

	sr := result.StageResults[0]
	assert.Equal(t, constants.StageStatusFailed, sr.Status)
	require.NotNil(t, sr.Reports)
	assert.Equal(t, 1, sr.Reports.Failures)
}

func TestEngineRunNotification(t *testing.T) {
	t.Parallel()

	t.Run("first run notifies once", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t)
		_, err := h.engine.Run(context.Background(), threeStagePipeline())
		require.NoError(t, err)
		assert.Equal(t, 1, h.notifier.calls())
	})

	t.Run("unchanged status stays silent", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t)
		_, err := h.engine.Run(context.Background(), threeStagePipeline())
		require.NoError(t, err)
		_, err = h.engine.Run(context.Background(), threeStagePipeline())
		require.NoError(t, err)

		// First run fired, second run's status matched it.
		assert.Equal(t, 1, h.notifier.calls())
	})

	t.Run("status flip notifies again", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t)
		_, err := h.engine.Run(context.Background(), threeStagePipeline())
		require.NoError(t, err)

		h.provider.mu.Lock()
		h.provider.scripts["pytest2"] = stageScript{exitCode: 1}
		h.provider.mu.Unlock()

		_, err = h.engine.Run(context.Background(), threeStagePipeline())
		require.NoError(t, err)

		assert.Equal(t, 2, h.notifier.calls())
	})
}

func TestEngineRunCanceledContext(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Run(ctx, threeStagePipeline())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.provider.acquisitions())
}

func TestEngineRunPersistsInterruptedRun(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An interrupt arrives while the second stage is running: its command is
	// killed and reports exit -1. The run must still leave a record behind.
	h.provider.scripts["pytest2"] = stageScript{exitCode: -1, output: "interrupted\n"}
	h.provider.onRun = func(command string) {
		if command == "pytest2" {
			cancel()
		}
	}

	result, err := h.engine.Run(ctx, threeStagePipeline())
	require.NoError(t, err)

	assert.Equal(t, constants.PipelineStatusFailure, result.Status)
	require.Len(t, result.StageResults, 2)
	assert.Equal(t, constants.StageStatusFailed, result.StageResults[1].Status)
	assert.Equal(t, -1, result.StageResults[1].ExitCode)

	// The third stage never started, and the record is final, not interim.
	assert.Equal(t, []string{"python:3.12", "python:2.7"}, h.provider.acquisitions())

	latest, err := h.store.Latest(context.Background(), "tvb-tests")
	require.NoError(t, err)
	assert.Equal(t, result.RunID, latest.RunID)
	assert.Equal(t, constants.PipelineStatusFailure, latest.Status)
	assert.False(t, latest.Interim)
}

func TestEngineRunCheckpointsEachStage(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)

	// Observe the store while the second stage is still running: the first
	// stage must already be checkpointed.
	var midRun []*domain.PipelineResult
	h.provider.onRun = func(command string) {
		if command != "pytest2" {
			return
		}
		results, err := h.store.List(context.Background(), "tvb-tests")
		require.NoError(t, err)
		midRun = results
	}

	result, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	require.Len(t, midRun, 1)
	assert.True(t, midRun[0].Interim)
	assert.Equal(t, constants.PipelineStatusFailure, midRun[0].Status)
	require.Len(t, midRun[0].StageResults, 1)
	assert.Equal(t, "lint", midRun[0].StageResults[0].Name)

	// The final save replaces the interim record for the same run.
	final, err := h.store.Get(context.Background(), "tvb-tests", result.RunID)
	require.NoError(t, err)
	assert.False(t, final.Interim)
	assert.Equal(t, constants.PipelineStatusSuccess, final.Status)
	assert.Len(t, final.StageResults, 3)
}

func TestEngineRunStreamsStageOutput(t *testing.T) {
	t.Parallel()

	var console strings.Builder
	h := newTestHarness(t, WithStageOutput(&console))
	h.provider.scripts["pytest3"] = stageScript{exitCode: 0, output: "200 passed\n"}

	_, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	assert.Contains(t, console.String(), "200 passed\n")
}

func TestEngineRunDistinctRunIDs(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	first, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)
	second, err := h.engine.Run(context.Background(), threeStagePipeline())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)

	results, err := h.store.List(context.Background(), "tvb-tests")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", tail("short"))

	long := strings.Repeat("x", constants.OutputTailLimit) + "end"
	got := tail(long)
	assert.Len(t, got, constants.OutputTailLimit)
	assert.True(t, strings.HasSuffix(got, "end"))
}
