package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mapmarket/mapmarket-backend/pkg/config"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

const sendgridSendURL = "https://api.sendgrid.com/v3/mail/send"

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridMailer sends through the SendGrid v3 mail API.
type SendgridMailer struct {
	cfg     config.EmailConfig
	sendURL string
	httpc   *http.Client
}

// NewSendgridMailer builds the mailer from config.
func NewSendgridMailer(cfg config.EmailConfig) (*SendgridMailer, error) {
	if strings.TrimSpace(cfg.SendgridAPIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SendgridMailer{
		cfg:     cfg,
		sendURL: sendgridSendURL,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridRequest struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	if msg.Subject == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject required")
	}

	payload := sendgridRequest{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: msg.To}}}},
		From:             sendgridAddress{Email: m.cfg.FromAddress, Name: m.cfg.FromName},
		Subject:          msg.Subject,
		Content:          []sendgridContent{{Type: "text/plain", Value: msg.TextBody}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.sendURL, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build mail request")
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.SendgridAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call sendgrid")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sendgrid returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}
	return nil
}
