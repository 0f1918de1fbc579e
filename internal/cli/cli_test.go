package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/domain"
)

func TestIsValidOutputFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		info     BuildInfo
		expected string
	}{
		{
			"full info",
			BuildInfo{Version: "1.2.0", Commit: "abc1234", Date: "2026-08-25"},
			"1.2.0 (commit: abc1234, built: 2026-08-25)",
		},
		{
			"empty info falls back",
			BuildInfo{},
			"dev (commit: none, built: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, formatVersion(tt.info))
		})
	}
}

func sampleRunResult() *domain.PipelineResult {
	started := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	return &domain.PipelineResult{
		SchemaVersion: constants.ResultSchemaVersion,
		RunID:         "run-20260825-103000",
		Pipeline:      "tvb-tests",
		Status:        constants.PipelineStatusFailure,
		StartedAt:     started,
		FinishedAt:    started.Add(4 * time.Minute),
		StageResults: []domain.StageResult{
			{
				Name:       "python3-tests",
				Status:     constants.StageStatusFailed,
				ExitCode:   1,
				Reports:    &domain.ReportSummary{Tests: 120, Failures: 2},
				StartedAt:  started,
				FinishedAt: started.Add(4 * time.Minute),
			},
		},
	}
}

func TestRenderResultJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, OutputJSON, sampleRunResult()))

	var decoded domain.PipelineResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-20260825-103000", decoded.RunID)
	assert.Equal(t, constants.PipelineStatusFailure, decoded.Status)
	require.Len(t, decoded.StageResults, 1)
	assert.Equal(t, 1, decoded.StageResults[0].ExitCode)
}

func TestRenderResultText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, OutputText, sampleRunResult()))

	out := buf.String()
	assert.Contains(t, out, "Pipeline tvb-tests")
	assert.Contains(t, out, "failure")
	assert.Contains(t, out, "python3-tests")
	assert.Contains(t, out, "exit=1")
	assert.Contains(t, out, "tests: 120 total, 2 failed")
}

func TestValidateCommand(t *testing.T) {
	// The root command initializes the file logger under $HOME, so these
	// subtests pin HOME to a temp dir and cannot run in parallel.
	t.Run("valid pipeline file", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		path := filepath.Join(t.TempDir(), "gantry.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`name: tvb-tests
stages:
  - name: python3-tests
    environment: docker://python:3.12
    command: pytest --junitxml=results.xml
    reports: [results.xml]
`), 0o600))

		var out bytes.Buffer
		cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"validate", "--file", path})

		require.NoError(t, cmd.ExecuteContext(context.Background()))
		assert.Contains(t, out.String(), `pipeline "tvb-tests" is valid (1 stages)`)
		assert.Contains(t, out.String(), "python3-tests")
	})

	t.Run("invalid pipeline file", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		path := filepath.Join(t.TempDir(), "gantry.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: broken\nstages: []\n"), 0o600))

		cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", "--file", path})

		require.Error(t, cmd.ExecuteContext(context.Background()))
	})

	t.Run("missing pipeline file", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", "--file", filepath.Join(t.TempDir(), "nope.yaml")})

		require.Error(t, cmd.ExecuteContext(context.Background()))
	})
}

func TestRootCommandRejectsBadOutputFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "--output", "yaml"})

	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRootCommandRejectsVerboseQuietCombination(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "--verbose", "--quiet"})

	require.Error(t, cmd.ExecuteContext(context.Background()))
}
