package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
	Enabled    bool
}

// EmailNotifier mails a rendered run summary over SMTP.
type EmailNotifier struct {
	cfg      EmailConfig
	on       string
	channel  string
	renderer *HTMLEmailRenderer
	send     func(*gomail.Message) error
	log      *zap.SugaredLogger
}

func NewEmailNotifier(cfg EmailConfig, on, channel string, log *zap.SugaredLogger) *EmailNotifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	n := &EmailNotifier{
		cfg:      cfg,
		on:       on,
		channel:  channel,
		renderer: NewHTMLEmailRenderer(),
		log:      log,
	}
	n.send = n.dialAndSend
	return n
}

func (n *EmailNotifier) Notify(ctx context.Context, s types.RunSummary) error {
	if !n.cfg.Enabled || !ShouldNotify(n.on, s.Outcome) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.renderer.Render(n.channel, s)
	if err != nil {
		return err
	}
	if err := n.send(n.message(msg)); err != nil {
		return errors.Wrapf(err, "send email to %s", n.cfg.ToEmail)
	}

	n.log.Infow("Email sent", "subject", msg.Subject, "to", n.cfg.ToEmail)
	return nil
}

// message builds the email with an HTML body and plain text fallback.
func (n *EmailNotifier) message(msg *RenderedMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ToEmail)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTML != "" && msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

func (n *EmailNotifier) dialAndSend(m *gomail.Message) error {
	dialer := gomail.NewDialer(n.cfg.SMTPServer, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second
	return dialer.DialAndSend(m)
}
