package notify

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/teacher-attendance-api/pkg/config"
)

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier delivers messages over SMTP.
type EmailNotifier struct {
	cfg    config.SMTPConfig
	dialer Dialer
}

// NewEmailNotifier builds an SMTP notifier. Port 465 uses implicit TLS, any other
// port negotiates STARTTLS.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	d := gomail.NewDialer(cfg.Server, cfg.Port, cfg.User, cfg.Password)
	d.SSL = cfg.Port == 465
	return &EmailNotifier{cfg: cfg, dialer: d}
}

// WithDialer replaces the SMTP transport.
func (n *EmailNotifier) WithDialer(d Dialer) *EmailNotifier {
	n.dialer = d
	return n
}

// Channel implements Notifier.
func (n *EmailNotifier) Channel() Channel { return ChannelEmail }

// Accepts implements Notifier.
func (n *EmailNotifier) Accepts(r Recipient) bool { return r.Email != "" }

// Send implements Notifier. gomail has no context support, so a cancelled
// context abandons the wait but not the underlying SMTP session.
func (n *EmailNotifier) Send(ctx context.Context, msg Message) error {
	if !n.cfg.Configured() {
		return fmt.Errorf("smtp: %w", ErrNotConfigured)
	}
	m, err := n.compose(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- n.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", msg.Recipient.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", msg.Recipient.Email, ctx.Err())
	}
}

func (n *EmailNotifier) compose(msg Message) (*gomail.Message, error) {
	content, err := renderEmail(msg, n.cfg.FromName)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", n.cfg.FromEmail, n.cfg.FromName)
	m.SetAddressHeader("To", msg.Recipient.Email, msg.Recipient.Name)
	m.SetHeader("Subject", content.Subject)
	m.SetBody("text/plain", content.Text)
	m.AddAlternative("text/html", content.HTML)

	for _, a := range msg.Attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		if a.Inline {
			m.Embed(a.Filename, settings...)
		} else {
			m.Attach(a.Filename, settings...)
		}
	}
	return m, nil
}
