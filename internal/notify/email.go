package notify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/mrz1836/gantry/internal/config"
	"github.com/mrz1836/gantry/internal/domain"
	"github.com/mrz1836/gantry/internal/errors"
)

// MailSender abstracts gomail delivery so tests can capture messages
// without an SMTP server. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier delivers status-change mail over SMTP to the pipeline's
// declared notify address.
type EmailNotifier struct {
	cfg    config.EmailConfig
	sender MailSender
}

// NewEmailNotifier creates an email notifier with a standard SMTP dialer
// built from the config. The SMTP password is read from the configured
// environment variable, never from the config file.
func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	password := ""
	if cfg.PasswordEnvVar != "" {
		password = os.Getenv(cfg.PasswordEnvVar)
	}
	return &EmailNotifier{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, password),
	}
}

// NewEmailNotifierWithSender creates an email notifier with a custom sender.
// This is useful for testing.
func NewEmailNotifierWithSender(cfg config.EmailConfig, sender MailSender) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, sender: sender}
}

// Name identifies the notifier in logs.
func (n *EmailNotifier) Name() string {
	return "email"
}

// Notify composes and sends the status-change mail. Skips silently when the
// pipeline declares no address or email delivery is disabled.
func (n *EmailNotifier) Notify(_ context.Context, p *domain.Pipeline, current, previous *domain.PipelineResult) error {
	if !n.cfg.Enabled || p.Notify.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", p.Notify.Email)
	m.SetHeader("Subject", subject(p, current, previous))
	m.SetBody("text/plain", body(current))

	if err := n.sender.DialAndSend(m); err != nil {
		return errors.Wrap(errors.ErrNotificationFailed, err.Error())
	}
	return nil
}

// subject renders a one-line status transition for the mail subject.
func subject(p *domain.Pipeline, current, previous *domain.PipelineResult) string {
	if previous == nil {
		return fmt.Sprintf("[gantry] %s: %s", p.Name, current.Status)
	}
	return fmt.Sprintf("[gantry] %s: %s (was %s)", p.Name, current.Status, previous.Status)
}

// body renders the per-stage table and junit summary as plain text.
func body(current *domain.PipelineResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Pipeline %s finished with status %s.\n\n", current.Pipeline, current.Status)
	fmt.Fprintf(&b, "Run:      %s\n", current.RunID)
	fmt.Fprintf(&b, "Started:  %s\n", current.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Finished: %s\n\n", current.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("Stages:\n")
	for i := range current.StageResults {
		sr := &current.StageResults[i]
		fmt.Fprintf(&b, "  %-24s %-8s exit=%d  %s\n",
			sr.Name, sr.Status, sr.ExitCode, sr.Duration().Round(time.Second).String())
		if sr.Error != "" {
			fmt.Fprintf(&b, "    error: %s\n", sr.Error)
		}
	}

	if summary, ok := current.Summary(); ok {
		fmt.Fprintf(&b, "\nTests: %d total, %d failed, %d errored, %d skipped\n",
			summary.Tests, summary.Failures, summary.Errors, summary.Skipped)
	}

	return b.String()
}

// Ensure EmailNotifier implements Notifier.
var _ Notifier = (*EmailNotifier)(nil)
