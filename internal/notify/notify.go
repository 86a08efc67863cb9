/*
Package notify reports finished runs by email.
*/
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/types"
)

// Notifier is told about every finished run and decides itself whether the
// outcome is worth a message.
type Notifier interface {
	Notify(ctx context.Context, summary types.RunSummary) error
}

// ShouldNotify reports whether outcome passes the notify.on threshold:
// "failure" sends only failed runs, "partial" adds partial runs and "always"
// sends everything.
func ShouldNotify(on string, outcome types.Outcome) bool {
	switch on {
	case "always":
		return true
	case "partial":
		return outcome == types.OutcomeFailed || outcome == types.OutcomePartial
	default:
		return outcome == types.OutcomeFailed
	}
}

// FromConfig returns an email notifier, or nil when the SMTP settings are
// incomplete.
func FromConfig(cfg *config.Config, log *zap.SugaredLogger) Notifier {
	ec := EmailConfig{
		SMTPServer: cfg.Notify.SMTPServer,
		SMTPPort:   cfg.Notify.SMTPPort,
		SMTPUser:   cfg.Notify.SMTPUser,
		SMTPPass:   cfg.Notify.SMTPPass,
		FromEmail:  cfg.Notify.From,
		ToEmail:    cfg.Notify.To,
	}
	if ec.FromEmail == "" {
		ec.FromEmail = ec.SMTPUser
	}
	ec.Enabled = ec.SMTPServer != "" && ec.SMTPUser != "" && ec.SMTPPass != "" && ec.ToEmail != ""
	if !ec.Enabled {
		return nil
	}
	return NewEmailNotifier(ec, cfg.Notify.On, cfg.Channel.Name, log)
}
