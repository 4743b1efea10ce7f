package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/noah-isme/teacher-attendance-api/pkg/config"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func smtpConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Server:    "smtp.example.com",
		Port:      587,
		User:      "mailer@example.com",
		Password:  "secret",
		FromEmail: "mailer@example.com",
		FromName:  "Teachers Attendance System",
	}
}

func TestEmailNotifierCheckIn(t *testing.T) {
	dialer := &captureDialer{}
	notifier := NewEmailNotifier(smtpConfig()).WithDialer(dialer)

	err := notifier.Send(context.Background(), Message{
		Kind:      KindCheckIn,
		Recipient: Recipient{Name: "Ana Putri", Email: "ana@example.com"},
		Fields:    Fields{Status: "On Time", Time: "06:30 AM", Date: "Tuesday, 05 March 2024"},
	})
	require.NoError(t, err)
	require.Len(t, dialer.sent, 1)

	m := dialer.sent[0]
	assert.Equal(t, []string{"Attendance Check In Confirmation"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ana@example.com")
}

func TestRenderEmailContent(t *testing.T) {
	content, err := renderEmail(Message{
		Kind:      KindCheckIn,
		Recipient: Recipient{Name: "Ana"},
		Fields:    Fields{Status: "Late", Time: "07:15 AM", Date: "Tuesday, 05 March 2024"},
	}, "Teachers Attendance System")
	require.NoError(t, err)
	assert.Equal(t, "Attendance Check In Confirmation", content.Subject)
	assert.Contains(t, content.Text, "07:15 AM")
	assert.Contains(t, content.Text, "Status: Late.")
	assert.Contains(t, content.HTML, "Dear Ana")

	content, err = renderEmail(Message{
		Kind:        KindWelcome,
		Recipient:   Recipient{Name: "Ana"},
		Fields:      Fields{UniqueID: "a1b2c3d4"},
		Attachments: []Attachment{{Filename: "teacher_a1b2c3d4.png", Inline: true}},
	}, "Teachers Attendance System")
	require.NoError(t, err)
	assert.Contains(t, content.HTML, `src="cid:teacher_a1b2c3d4.png"`)
	assert.Contains(t, content.Text, "Your ID: a1b2c3d4")

	_, err = renderEmail(Message{Kind: Kind("unknown")}, "x")
	require.Error(t, err)
}

func TestEmailNotifierWelcomeEmbedsQRCode(t *testing.T) {
	dialer := &captureDialer{}
	notifier := NewEmailNotifier(smtpConfig()).WithDialer(dialer)

	err := notifier.Send(context.Background(), Message{
		Kind:      KindWelcome,
		Recipient: Recipient{Name: "Ana", Email: "ana@example.com"},
		Fields:    Fields{UniqueID: "a1b2c3d4"},
		Attachments: []Attachment{{
			Filename:    "teacher_a1b2c3d4.png",
			ContentType: "image/png",
			Data:        []byte("\x89PNG"),
			Inline:      true,
		}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = dialer.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome to Teachers Attendance System - Your QR Code"}, dialer.sent[0].GetHeader("Subject"))
	assert.Contains(t, buf.String(), "Content-ID: <teacher_a1b2c3d4.png>")
}

func TestEmailNotifierNotConfigured(t *testing.T) {
	cfg := smtpConfig()
	cfg.Password = ""
	dialer := &captureDialer{}
	notifier := NewEmailNotifier(cfg).WithDialer(dialer)

	err := notifier.Send(context.Background(), Message{Kind: KindCheckOut, Recipient: Recipient{Email: "a@example.com"}})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, dialer.sent)
}

func TestEmailNotifierPropagatesTransportError(t *testing.T) {
	dialer := &captureDialer{err: errors.New("connection refused")}
	notifier := NewEmailNotifier(smtpConfig()).WithDialer(dialer)

	err := notifier.Send(context.Background(), Message{Kind: KindMissedSignIn, Recipient: Recipient{Name: "Ana", Email: "a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSMSNotifierPostsProviderPayload(t *testing.T) {
	var got map[string]string
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, "/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"sent"}`))
	}))
	defer server.Close()

	cfg := config.SMSConfig{Enabled: true, RapidAPIKey: "key", Host: "sms-service.p.rapidapi.com", Sender: "Attendance"}
	notifier := NewSMSNotifier(cfg, time.Second).WithBaseURL(server.URL)

	err := notifier.Send(context.Background(), Message{
		Kind:      KindMissedSignOut,
		Recipient: Recipient{Name: "Ana", Phone: "+628123"},
		Fields:    Fields{Date: "Tuesday, 05 March 2024"},
	})
	require.NoError(t, err)
	assert.Equal(t, "key", headers.Get("X-RapidAPI-Key"))
	assert.Equal(t, "sms-service.p.rapidapi.com", headers.Get("X-RapidAPI-Host"))
	assert.Equal(t, "+628123", got["phone"])
	assert.Equal(t, "Attendance", got["sender"])
	assert.Contains(t, got["text"], "did not check out")
}

func TestSMSNotifierTextlocalCarriesAPIKey(t *testing.T) {
	notifier := NewSMSNotifier(config.SMSConfig{RapidAPIKey: "key", Host: "textlocal.p.rapidapi.com", Sender: "S"}, time.Second)
	payload := notifier.payload("+1", "hi")
	assert.Equal(t, map[string]string{"numbers": "+1", "message": "hi", "sender": "S", "apikey": "key"}, payload)

	notifier = NewSMSNotifier(config.SMSConfig{RapidAPIKey: "key", Host: "unknown.example", Sender: "S"}, time.Second)
	assert.Equal(t, map[string]string{"to": "+1", "message": "hi", "from": "S"}, notifier.payload("+1", "hi"))
}

func TestSMSNotifierNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	notifier := NewSMSNotifier(config.SMSConfig{RapidAPIKey: "key", Host: "sms-service.p.rapidapi.com"}, time.Second).WithBaseURL(server.URL)
	err := notifier.Send(context.Background(), Message{Kind: KindCheckIn, Recipient: Recipient{Name: "Ana", Phone: "+1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOutcomeSucceeded(t *testing.T) {
	var nilOutcome *Outcome
	assert.False(t, nilOutcome.Succeeded())

	o := &Outcome{Deliveries: []Delivery{{Success: true}, {Success: false}}}
	assert.False(t, o.Succeeded())
	assert.True(t, o.Attempted())

	o = &Outcome{Deliveries: []Delivery{{Success: true}}}
	assert.True(t, o.Succeeded())
}

func TestFromConfig(t *testing.T) {
	notifiers := FromConfig(smtpConfig(), config.SMSConfig{}, time.Second)
	require.Len(t, notifiers, 1)
	assert.Equal(t, ChannelEmail, notifiers[0].Channel())

	notifiers = FromConfig(smtpConfig(), config.SMSConfig{Enabled: true, RapidAPIKey: "key", Host: "sms-service.p.rapidapi.com"}, time.Second)
	require.Len(t, notifiers, 2)
	assert.Equal(t, ChannelSMS, notifiers[1].Channel())
	assert.True(t, notifiers[1].Accepts(Recipient{Phone: "+628123"}))
	assert.False(t, notifiers[1].Accepts(Recipient{Email: "ana@school.org"}))
}
