package constants

// PipelineStatus represents the overall outcome of a pipeline run.
// Status values use snake_case for JSON serialization compatibility.
type PipelineStatus string

// Pipeline status constants. A run is SUCCESS only when every declared stage
// ran and exited zero; any recorded failure or environment error makes the
// whole run FAILURE.
const (
	// PipelineStatusSuccess indicates every stage completed with exit code 0.
	PipelineStatusSuccess PipelineStatus = "success"

	// PipelineStatusFailure indicates at least one stage failed or errored.
	PipelineStatusFailure PipelineStatus = "failure"
)

// String returns the string representation of the PipelineStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s PipelineStatus) String() string {
	return string(s)
}

// StageStatus represents the state of a single stage within a run.
// Status values use snake_case for JSON serialization compatibility.
type StageStatus string

// Stage status constants define the valid states a stage can be in.
// Stages move Pending → Running → (Passed | Failed | Error). Stages after a
// failed stage never leave Pending and are not recorded in the run result;
// they surface as Skipped only in rendered output.
const (
	// StageStatusPending indicates a stage is declared but not yet started.
	StageStatusPending StageStatus = "pending"

	// StageStatusRunning indicates the stage's command is executing.
	StageStatusRunning StageStatus = "running"

	// StageStatusPassed indicates the command completed with exit code 0.
	StageStatusPassed StageStatus = "passed"

	// StageStatusFailed indicates the command completed with a non-zero exit
	// code. This is data, not an execution error.
	StageStatusFailed StageStatus = "failed"

	// StageStatusError indicates the stage could not run at all, typically
	// because its execution environment was unavailable.
	StageStatusError StageStatus = "error"

	// StageStatusSkipped indicates the stage was never attempted because an
	// earlier stage failed. Used for display only.
	StageStatusSkipped StageStatus = "skipped"
)

// String returns the string representation of the StageStatus.
func (s StageStatus) String() string {
	return string(s)
}

// IsTerminalStageStatus returns true for stage states that will not change
// for the remainder of the run.
func IsTerminalStageStatus(s StageStatus) bool {
	switch s {
	case StageStatusPassed, StageStatusFailed, StageStatusError, StageStatusSkipped:
		return true
	case StageStatusPending, StageStatusRunning:
		return false
	default:
		return false
	}
}
