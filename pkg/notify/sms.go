package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/teacher-attendance-api/pkg/config"
)

// payloadKeys maps the generic fields onto a provider's JSON body.
type payloadKeys struct {
	To      string
	Message string
	From    string
}

var rapidAPIProviders = map[string]payloadKeys{
	"sms-service.p.rapidapi.com": {To: "phone", Message: "text", From: "sender"},
	"textlocal.p.rapidapi.com":   {To: "numbers", Message: "message", From: "sender"},
	"twilio-sms.p.rapidapi.com":  {To: "To", Message: "Body", From: "From"},
	"nexmo-sms.p.rapidapi.com":   {To: "to", Message: "text", From: "from"},
}

var defaultPayloadKeys = payloadKeys{To: "to", Message: "message", From: "from"}

// SMSNotifier delivers messages through a RapidAPI hosted SMS provider.
type SMSNotifier struct {
	cfg     config.SMSConfig
	client  *http.Client
	baseURL string
}

// NewSMSNotifier builds a notifier for cfg.Host.
func NewSMSNotifier(cfg config.SMSConfig, timeout time.Duration) *SMSNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMSNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		baseURL: "https://" + cfg.Host,
	}
}

// WithBaseURL points the notifier at another endpoint root.
func (n *SMSNotifier) WithBaseURL(baseURL string) *SMSNotifier {
	n.baseURL = strings.TrimRight(baseURL, "/")
	return n
}

// Channel implements Notifier.
func (n *SMSNotifier) Channel() Channel { return ChannelSMS }

// Accepts implements Notifier.
func (n *SMSNotifier) Accepts(r Recipient) bool { return r.Phone != "" }

// Send implements Notifier.
func (n *SMSNotifier) Send(ctx context.Context, msg Message) error {
	if n.cfg.RapidAPIKey == "" {
		return fmt.Errorf("sms: %w", ErrNotConfigured)
	}
	text, err := renderSMS(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(n.payload(msg.Recipient.Phone, text))
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RapidAPI-Key", n.cfg.RapidAPIKey)
	req.Header.Set("X-RapidAPI-Host", n.cfg.Host)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", msg.Recipient.Phone, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *SMSNotifier) payload(phone, text string) map[string]string {
	keys, ok := rapidAPIProviders[n.cfg.Host]
	if !ok {
		keys = defaultPayloadKeys
	}
	payload := map[string]string{
		keys.To:      phone,
		keys.Message: text,
		keys.From:    n.cfg.Sender,
	}
	if strings.Contains(n.cfg.Host, "textlocal") {
		payload["apikey"] = n.cfg.RapidAPIKey
	}
	return payload
}
