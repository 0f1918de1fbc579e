// Package notify delivers pipeline status-change notifications.
//
// Notification is edge triggered: a notifier fires only when the current
// run's overall status differs from the previous run's (a first run with no
// previous result counts as a change). Delivery failure is logged and never
// affects the pipeline outcome or exit code.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mrz1836/gantry/internal/domain"
)

// Notifier delivers one kind of notification for a status change.
type Notifier interface {
	// Name identifies the notifier in logs ("email", "bell").
	Name() string

	// Notify delivers the notification. Called only after change detection
	// has already decided the notification should fire.
	Notify(ctx context.Context, p *domain.Pipeline, current, previous *domain.PipelineResult) error
}

// StatusChanged reports whether current's overall status differs from
// previous's. An absent previous run counts as changed, matching how CI
// systems mail on the first build.
func StatusChanged(current, previous *domain.PipelineResult) bool {
	if previous == nil {
		return true
	}
	return current.Status != previous.Status
}

// Dispatcher applies change detection once and fans out to the configured
// notifiers. Each notifier's failure is isolated: it is logged and does not
// stop the others.
type Dispatcher struct {
	notifiers []Notifier
	quiet     bool
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given notifiers.
// When quiet is set, NotifyIfChanged never fires anything.
func NewDispatcher(logger zerolog.Logger, quiet bool, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		quiet:     quiet,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// NotifyIfChanged fires every notifier when the overall status changed since
// the previous run. It never returns an error: notification failure must not
// alter the reported pipeline outcome.
func (d *Dispatcher) NotifyIfChanged(ctx context.Context, p *domain.Pipeline, current, previous *domain.PipelineResult) {
	if d == nil || d.quiet {
		return
	}

	if !StatusChanged(current, previous) {
		d.logger.Debug().
			Str("status", current.Status.String()).
			Msg("status unchanged, skipping notification")
		return
	}

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, p, current, previous); err != nil {
			d.logger.Error().
				Err(err).
				Str("notifier", n.Name()).
				Str("pipeline", p.Name).
				Msg("notification delivery failed")
		} else {
			d.logger.Info().
				Str("notifier", n.Name()).
				Str("status", current.Status.String()).
				Msg("notification delivered")
		}
	}
}
