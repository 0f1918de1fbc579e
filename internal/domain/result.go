package domain

import (
	"time"

	"github.com/mrz1836/gantry/internal/constants"
)

// StageResult records the outcome of one executed stage. Created by the
// stage executor and owned by the run result for the run's lifetime.
type StageResult struct {
	// Name is the stage name from the StageSpec.
	Name string `json:"name"`

	// Status is the terminal state the stage reached.
	Status constants.StageStatus `json:"status"`

	// Environment is the environment reference the stage actually ran in.
	Environment string `json:"environment"`

	// ExitCode is the command's exit code. -1 when the command never ran
	// (environment error) or was killed by timeout.
	ExitCode int `json:"exit_code"`

	// ReportPaths lists collected report artifacts, in declaration order,
	// as paths within the run's report directory.
	ReportPaths []string `json:"report_paths,omitempty"`

	// Reports summarizes parsed junit results across the stage's reports.
	// Nil when the stage declared no parseable reports.
	Reports *ReportSummary `json:"reports,omitempty"`

	// OutputTail is the last portion of the command's combined output,
	// bounded by constants.OutputTailLimit. Full output is in the run log.
	OutputTail string `json:"output_tail,omitempty"`

	// Error describes why the stage errored, for status=error only.
	Error string `json:"error,omitempty"`

	// StartedAt is when the stage began environment acquisition.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the stage's teardown completed.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the stage's wall-clock duration.
func (r *StageResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ReportSummary aggregates junit test counts parsed from a stage's report
// artifacts.
type ReportSummary struct {
	Tests    int `json:"tests"`
	Failures int `json:"failures"`
	Errors   int `json:"errors"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another summary into this one.
func (s *ReportSummary) Add(other ReportSummary) {
	s.Tests += other.Tests
	s.Failures += other.Failures
	s.Errors += other.Errors
	s.Skipped += other.Skipped
}

// PipelineResult is the persisted record of one pipeline run.
//
// Invariants: len(StageResults) never exceeds the declared stage count, and
// Status is failure exactly when any recorded stage failed or errored.
// Stages after the first failure are never recorded.
type PipelineResult struct {
	// SchemaVersion enables forward-compatible migrations of stored results.
	SchemaVersion string `json:"schema_version"`

	// RunID uniquely identifies this run (run-YYYYMMDD-HHMMSS form).
	RunID string `json:"run_id"`

	// Pipeline is the pipeline name the run belongs to.
	Pipeline string `json:"pipeline"`

	// Status is the overall outcome of the run.
	Status constants.PipelineStatus `json:"status"`

	// Interim marks a checkpoint snapshot of a run still in progress.
	// The final save clears it. An interim record left behind by a crashed
	// or interrupted run always carries a failure status.
	Interim bool `json:"interim,omitempty"`

	// StageResults holds per-stage outcomes in execution order.
	StageResults []StageResult `json:"stage_results"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run completed or aborted.
	FinishedAt time.Time `json:"finished_at"`
}

// Failed reports whether the run ended in failure.
func (r *PipelineResult) Failed() bool {
	return r.Status == constants.PipelineStatusFailure
}

// ComputeStatus derives the overall status from the recorded stage results.
func ComputeStatus(stageResults []StageResult) constants.PipelineStatus {
	for i := range stageResults {
		if stageResults[i].Status != constants.StageStatusPassed {
			return constants.PipelineStatusFailure
		}
	}
	return constants.PipelineStatusSuccess
}

// Summary returns the aggregate junit counts across all recorded stages.
// The second return is false when no stage produced a parseable report.
func (r *PipelineResult) Summary() (ReportSummary, bool) {
	var total ReportSummary
	found := false
	for i := range r.StageResults {
		if rs := r.StageResults[i].Reports; rs != nil {
			total.Add(*rs)
			found = true
		}
	}
	return total, found
}
