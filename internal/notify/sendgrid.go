package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Message is one outbound email.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridConfig configures SendGridMailer.
type SendGridConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// SendGridMailer sends mail through the SendGrid v3 mail-send API.
type SendGridMailer struct {
	cfg    SendGridConfig
	client *http.Client
	logger *slog.Logger
}

func NewSendGridMailer(cfg SendGridConfig, logger *slog.Logger) *SendGridMailer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.sendgrid.com/v3/mail/send"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To      []sendGridAddress `json:"to"`
	Subject string            `json:"subject"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send posts msg to SendGrid. Rejections other than 408 and 429 are
// classified permanent.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendGridRequest{
		Personalizations: []sendGridPersonalization{{
			To:      []sendGridAddress{{Email: msg.To}},
			Subject: msg.Subject,
		}},
		From:    sendGridAddress{Email: msg.From},
		Content: []sendGridContent{{Type: "text/html", Value: msg.HTML}},
	})
	if err != nil {
		return NewPermanentError(fmt.Errorf("encoding sendgrid request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return NewPermanentError(fmt.Errorf("creating sendgrid request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		m.logger.Info("email sent", "subject", msg.Subject, "message_id", resp.Header.Get("X-Message-Id"))
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyStatus(resp.StatusCode, string(detail))
}

func classifyStatus(status int, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}

	err := fmt.Errorf("sendgrid send failed: status %d: %s", status, msg)
	if isPermanentStatus(status) {
		return NewPermanentError(err)
	}
	return err
}

func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
