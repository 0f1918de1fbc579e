package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrz1836/gantry/internal/constants"
	"github.com/mrz1836/gantry/internal/domain"
)

// Color palette for rendered output.
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}  //nolint:gochecknoglobals // Style palette
	colorFailure = lipgloss.AdaptiveColor{Light: "160", Dark: "9"}  //nolint:gochecknoglobals // Style palette
	colorMuted   = lipgloss.AdaptiveColor{Light: "243", Dark: "8"}  //nolint:gochecknoglobals // Style palette
	colorHeader  = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}  //nolint:gochecknoglobals // Style palette
)

// renderResult writes a run result in the requested output format.
func renderResult(w io.Writer, format string, result *domain.PipelineResult) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	renderResultText(w, result)
	return nil
}

// renderResultText renders the human-readable run summary.
func renderResultText(w io.Writer, result *domain.PipelineResult) {
	header := lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	muted := lipgloss.NewStyle().Foreground(colorMuted)

	fmt.Fprintf(w, "%s %s\n",
		header.Render("Pipeline "+result.Pipeline),
		statusStyle(result.Status).Render(result.Status.String()))
	fmt.Fprintf(w, "%s\n", muted.Render(fmt.Sprintf("run %s, %s",
		result.RunID, result.FinishedAt.Sub(result.StartedAt).Round(time.Second))))

	for i := range result.StageResults {
		sr := &result.StageResults[i]
		line := fmt.Sprintf("  %-24s %-8s exit=%-3d %s",
			sr.Name, sr.Status, sr.ExitCode, sr.Duration().Round(time.Second))
		fmt.Fprintf(w, "%s\n", stageStyle(sr.Status).Render(line))
		if sr.Error != "" {
			fmt.Fprintf(w, "%s\n", muted.Render("    "+sr.Error))
		}
	}

	if summary, ok := result.Summary(); ok {
		fmt.Fprintf(w, "%s\n", muted.Render(fmt.Sprintf(
			"  tests: %d total, %d failed, %d errored, %d skipped",
			summary.Tests, summary.Failures, summary.Errors, summary.Skipped)))
	}
}

// statusStyle returns the style for an overall pipeline status.
func statusStyle(status constants.PipelineStatus) lipgloss.Style {
	if status == constants.PipelineStatusSuccess {
		return lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(colorFailure).Bold(true)
}

// stageStyle returns the style for a stage status line.
func stageStyle(status constants.StageStatus) lipgloss.Style {
	switch status {
	case constants.StageStatusPassed:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case constants.StageStatusFailed, constants.StageStatusError:
		return lipgloss.NewStyle().Foreground(colorFailure)
	case constants.StageStatusPending, constants.StageStatusRunning, constants.StageStatusSkipped:
		return lipgloss.NewStyle().Foreground(colorMuted)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}
