package notify

import (
	"context"
	"io"
	"os"

	"github.com/mrz1836/gantry/internal/domain"
)

// bellCharacter is the ASCII BEL control character that triggers the
// terminal's audible or visual bell.
const bellCharacter = "\a"

// BellNotifier emits a terminal bell when a run's status change lands on
// failure. Successful recoveries stay silent: the bell exists to pull the
// operator back to a broken pipeline, not to celebrate.
type BellNotifier struct {
	writer io.Writer
}

// NewBellNotifier creates a bell notifier writing to stdout.
func NewBellNotifier() *BellNotifier {
	return &BellNotifier{writer: os.Stdout}
}

// NewBellNotifierWithWriter creates a bell notifier with a custom writer.
// This is useful for testing.
func NewBellNotifierWithWriter(w io.Writer) *BellNotifier {
	return &BellNotifier{writer: w}
}

// Name identifies the notifier in logs.
func (n *BellNotifier) Name() string {
	return "bell"
}

// Notify emits the bell for failures.
func (n *BellNotifier) Notify(_ context.Context, _ *domain.Pipeline, current, _ *domain.PipelineResult) error {
	if !current.Failed() {
		return nil
	}
	_, err := n.writer.Write([]byte(bellCharacter))
	return err
}

// Ensure BellNotifier implements Notifier.
var _ Notifier = (*BellNotifier)(nil)
