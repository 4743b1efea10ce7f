// Package notify delivers attendance notifications over email and SMS.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/teacher-attendance-api/pkg/config"
)

// Kind selects the content template of a message.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindCheckIn       Kind = "check_in"
	KindCheckOut      Kind = "check_out"
	KindMissedSignIn  Kind = "missed_sign_in"
	KindMissedSignOut Kind = "missed_sign_out"
)

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ErrNotConfigured is returned by a channel that has no credentials.
var ErrNotConfigured = errors.New("channel not configured")

// Recipient is who a message is addressed to. Either address may be empty.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Attachment is a file carried by an email. Inline attachments are referenced
// from the HTML body through cid:<Filename>.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Inline      bool
}

// Message is a channel independent notification.
type Message struct {
	Kind        Kind
	Recipient   Recipient
	OccurredAt  time.Time
	Fields      Fields
	Attachments []Attachment
}

// Fields are pre-formatted values substituted into templates.
type Fields struct {
	UniqueID string
	Status   string
	Time     string
	Date     string
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Channel() Channel
	// Accepts reports whether the recipient is reachable on this channel.
	Accepts(Recipient) bool
	Send(ctx context.Context, msg Message) error
}

// Delivery is the outcome of one channel attempt.
type Delivery struct {
	Channel   Channel   `json:"channel"`
	Recipient string    `json:"recipient"`
	Success   bool      `json:"success"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Outcome aggregates the deliveries of one message.
type Outcome struct {
	Kind       Kind       `json:"kind"`
	Queued     bool       `json:"queued"`
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Succeeded reports whether every attempted delivery went through.
func (o *Outcome) Succeeded() bool {
	if o == nil {
		return false
	}
	for _, d := range o.Deliveries {
		if !d.Success {
			return false
		}
	}
	return true
}

// Attempted reports whether any channel was tried or the message was queued.
func (o *Outcome) Attempted() bool {
	return o != nil && (o.Queued || len(o.Deliveries) > 0)
}

// FromConfig builds the enabled channels. Email is always present so a missing
// SMTP setup shows up as a failed delivery; SMS only when enabled.
func FromConfig(smtp config.SMTPConfig, sms config.SMSConfig, timeout time.Duration) []Notifier {
	notifiers := []Notifier{NewEmailNotifier(smtp)}
	if sms.Enabled {
		notifiers = append(notifiers, NewSMSNotifier(sms, timeout))
	}
	return notifiers
}
