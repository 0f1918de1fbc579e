package engine

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/domain"
	gantryerrors "github.com/mrz1836/gantry/internal/errors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleResult(pipelineName, runID string, status constants.PipelineStatus, started time.Time) *domain.PipelineResult {
	return &domain.PipelineResult{
		RunID:     runID,
		Pipeline:  pipelineName,
		Status:    status,
		StartedAt: started,
		StageResults: []domain.StageResult{
			{Name: "python3-tests", Status: constants.StageStatusPassed, Environment: "docker://python:3.12"},
		},
	}
}

func TestFileStoreSaveAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-103000", constants.PipelineStatusSuccess, started)))

	got, err := store.Get(ctx, "tvb-tests", "run-20260825-103000")
	require.NoError(t, err)
	assert.Equal(t, "run-20260825-103000", got.RunID)
	assert.Equal(t, constants.PipelineStatusSuccess, got.Status)
	assert.Equal(t, constants.ResultSchemaVersion, got.SchemaVersion)
	require.Len(t, got.StageResults, 1)
	assert.Equal(t, "python3-tests", got.StageResults[0].Name)
}

func TestFileStoreSaveValidation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, store.Save(ctx, nil), gantryerrors.ErrEmptyValue)
	require.ErrorIs(t, store.Save(ctx, &domain.PipelineResult{RunID: "run-20260825-103000"}), gantryerrors.ErrEmptyValue)
	require.ErrorIs(t, store.Save(ctx, &domain.PipelineResult{Pipeline: "p"}), gantryerrors.ErrEmptyValue)
}

func TestFileStoreSaveDuplicateRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	result := sampleResult("tvb-tests", "run-20260825-103000", constants.PipelineStatusSuccess, time.Now().UTC())

	require.NoError(t, store.Save(ctx, result))
	require.ErrorIs(t, store.Save(ctx, result), gantryerrors.ErrRunExists)
}

func TestFileStoreCheckpoint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	t.Run("interim record is readable and marked", func(t *testing.T) {
		t.Parallel()

		result := sampleResult("checkpointed", "run-20260825-103000", constants.PipelineStatusFailure, started)
		require.NoError(t, store.Checkpoint(ctx, result))

		got, err := store.Get(ctx, "checkpointed", "run-20260825-103000")
		require.NoError(t, err)
		assert.True(t, got.Interim)
		assert.Equal(t, constants.ResultSchemaVersion, got.SchemaVersion)

		latest, err := store.Latest(ctx, "checkpointed")
		require.NoError(t, err)
		assert.Equal(t, "run-20260825-103000", latest.RunID)
	})

	t.Run("later checkpoint overwrites earlier one", func(t *testing.T) {
		t.Parallel()

		first := sampleResult("growing", "run-20260825-103000", constants.PipelineStatusFailure, started)
		require.NoError(t, store.Checkpoint(ctx, first))

		second := sampleResult("growing", "run-20260825-103000", constants.PipelineStatusFailure, started)
		second.StageResults = append(second.StageResults,
			domain.StageResult{Name: "python2-tests", Status: constants.StageStatusPassed})
		require.NoError(t, store.Checkpoint(ctx, second))

		got, err := store.Get(ctx, "growing", "run-20260825-103000")
		require.NoError(t, err)
		assert.Len(t, got.StageResults, 2)
	})

	t.Run("save finalizes a checkpointed run", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, store.Checkpoint(ctx,
			sampleResult("finalized", "run-20260825-103000", constants.PipelineStatusFailure, started)))
		require.NoError(t, store.Save(ctx,
			sampleResult("finalized", "run-20260825-103000", constants.PipelineStatusSuccess, started)))

		got, err := store.Get(ctx, "finalized", "run-20260825-103000")
		require.NoError(t, err)
		assert.False(t, got.Interim)
		assert.Equal(t, constants.PipelineStatusSuccess, got.Status)
	})

	t.Run("finalized run refuses further writes", func(t *testing.T) {
		t.Parallel()

		result := sampleResult("sealed", "run-20260825-103000", constants.PipelineStatusSuccess, started)
		require.NoError(t, store.Save(ctx, result))

		require.ErrorIs(t, store.Save(ctx, result), gantryerrors.ErrRunExists)
		require.ErrorIs(t, store.Checkpoint(ctx, result), gantryerrors.ErrRunExists)
	})
}

func TestFileStoreGetErrors(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "tvb-tests", "run-20260825-999999")
	require.ErrorIs(t, err, gantryerrors.ErrRunNotFound)

	_, err = store.Get(ctx, "tvb-tests", "../../etc/passwd")
	require.ErrorIs(t, err, gantryerrors.ErrRunNotFound)

	_, err = store.Get(ctx, "", "run-20260825-103000")
	require.ErrorIs(t, err, gantryerrors.ErrEmptyValue)

	_, err = store.Get(ctx, "tvb-tests", "")
	require.ErrorIs(t, err, gantryerrors.ErrEmptyValue)
}

func TestFileStoreLatest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Latest(ctx, "tvb-tests")
	require.ErrorIs(t, err, gantryerrors.ErrNoPreviousRun)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-100000", constants.PipelineStatusFailure, base)))
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-110000", constants.PipelineStatusSuccess, base.Add(time.Hour))))

	latest, err := store.Latest(ctx, "tvb-tests")
	require.NoError(t, err)
	assert.Equal(t, "run-20260825-110000", latest.RunID)
	assert.Equal(t, constants.PipelineStatusSuccess, latest.Status)
}

func TestFileStoreList(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	results, err := store.List(ctx, "never-ran")
	require.NoError(t, err)
	assert.Empty(t, results)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-100000", constants.PipelineStatusSuccess, base)))
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-110000", constants.PipelineStatusFailure, base.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-120000", constants.PipelineStatusSuccess, base.Add(2*time.Hour))))

	results, err = store.List(ctx, "tvb-tests")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "run-20260825-120000", results[0].RunID)
	assert.Equal(t, "run-20260825-110000", results[1].RunID)
	assert.Equal(t, "run-20260825-100000", results[2].RunID)
}

func TestFileStoreListSkipsCorruptedRuns(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleResult("tvb-tests", "run-20260825-100000", constants.PipelineStatusSuccess, time.Now().UTC())))

	corrupt := filepath.Join(store.runDir("tvb-tests", "run-20260825-110000"))
	require.NoError(t, os.MkdirAll(corrupt, dirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, constants.ResultFileName), []byte("{not json"), filePerm))

	results, err := store.List(ctx, "tvb-tests")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "run-20260825-100000", results[0].RunID)
}

func TestFileStoreReportDir(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	dir := store.ReportDir("tvb-tests", "run-20260825-103000")
	assert.Equal(t, filepath.Join(store.gantryHome, constants.RunsDir, "tvb-tests", "run-20260825-103000", constants.ReportsDir), dir)
}

func TestFileStoreContextCancellation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Save(ctx, sampleResult("p", "run-20260825-103000", constants.PipelineStatusSuccess, time.Now())), context.Canceled)

	_, err := store.Get(ctx, "p", "run-20260825-103000")
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.Latest(ctx, "p")
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.List(ctx, "p")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRunID(t *testing.T) {
	t.Parallel()

	assert.Regexp(t, regexp.MustCompile(`^run-\d{8}-\d{6}$`), GenerateRunID())
}

func TestGenerateRunIDUnique(t *testing.T) {
	t.Parallel()

	id := GenerateRunIDUnique(nil)
	assert.Regexp(t, validRunIDRegex, id)

	collided := GenerateRunIDUnique(map[string]bool{GenerateRunID(): true})
	assert.Regexp(t, regexp.MustCompile(`^run-\d{8}-\d{6}-\d{3}$`), collided)
}

func TestAtomicWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, atomicWrite(path, []byte(`{"ok":true}`)))

	data, err := os.ReadFile(path) //#nosec G304 -- test-owned temp path
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))

	// No temp file left behind.
	assert.NoFileExists(t, path+".tmp")
}
