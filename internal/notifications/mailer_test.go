package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

func newTestMailer(t *testing.T, handler http.HandlerFunc) (*SendgridMailer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	mailer, err := NewSendgridMailer(config.EmailConfig{
		SendgridAPIKey: "SG.test-key",
		FromAddress:    "no-reply@mapmarket.in",
		FromName:       "MapMarket",
		Timeout:        5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new mailer: %v", err)
	}
	mailer.sendURL = server.URL
	return mailer, server
}

func TestSendgridMailerSend(t *testing.T) {
	var captured sendgridRequest
	var authHeader string

	mailer, _ := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	})

	err := mailer.Send(context.Background(), Message{
		To:       "buyer@example.com",
		Subject:  "Hello",
		TextBody: "body text",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if authHeader != "Bearer SG.test-key" {
		t.Fatalf("auth header = %q", authHeader)
	}
	if len(captured.Personalizations) != 1 || captured.Personalizations[0].To[0].Email != "buyer@example.com" {
		t.Fatalf("recipient not set")
	}
	if captured.From.Email != "no-reply@mapmarket.in" || captured.From.Name != "MapMarket" {
		t.Fatalf("from = %+v", captured.From)
	}
	if captured.Subject != "Hello" {
		t.Fatalf("subject = %q", captured.Subject)
	}
	if len(captured.Content) != 1 || captured.Content[0].Value != "body text" {
		t.Fatalf("content = %+v", captured.Content)
	}
}

func TestSendgridMailerUpstreamError(t *testing.T) {
	mailer, _ := newTestMailer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := mailer.Send(context.Background(), Message{To: "buyer@example.com", Subject: "Hello"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("err = %v, want dependency", err)
	}
}

func TestSendgridMailerRequiresKey(t *testing.T) {
	_, err := NewSendgridMailer(config.EmailConfig{})
	if err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

type captureMailer struct {
	messages []Message
}

func (c *captureMailer) Send(_ context.Context, msg Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func TestNotifierDeliveryOTP(t *testing.T) {
	capture := &captureMailer{}
	logg := logger.New(logger.Options{ServiceName: "notify-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	notifier, err := NewNotifier(capture, logg)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	if err := notifier.SendDeliveryOTP(context.Background(), "buyer@example.com", "MAP-1A2B3C4D", "4821"); err != nil {
		t.Fatalf("send delivery otp: %v", err)
	}

	if len(capture.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(capture.messages))
	}
	msg := capture.messages[0]
	if msg.To != "buyer@example.com" {
		t.Fatalf("to = %q", msg.To)
	}
	if want := "Your delivery code for order MAP-1A2B3C4D"; msg.Subject != want {
		t.Fatalf("subject = %q, want %q", msg.Subject, want)
	}
	if !strings.Contains(msg.TextBody, "4821") {
		t.Fatalf("body does not carry the code: %q", msg.TextBody)
	}
}

func TestNotifierEmailOTPSubjects(t *testing.T) {
	capture := &captureMailer{}
	logg := logger.New(logger.Options{ServiceName: "notify-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	notifier, err := NewNotifier(capture, logg)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	cases := []struct {
		purpose enums.OTPPurpose
		subject string
	}{
		{enums.OTPPurposeRegistration, "Confirm your MapMarket account"},
		{enums.OTPPurposePasswordReset, "Reset your MapMarket password"},
		{enums.OTPPurposeVerification, "Your MapMarket verification code"},
	}
	for _, tc := range cases {
		capture.messages = nil
		if err := notifier.SendEmailOTP(context.Background(), "buyer@example.com", tc.purpose, "123456", 10*time.Minute); err != nil {
			t.Fatalf("send otp (%s): %v", tc.purpose, err)
		}
		if capture.messages[0].Subject != tc.subject {
			t.Fatalf("purpose %s subject = %q, want %q", tc.purpose, capture.messages[0].Subject, tc.subject)
		}
		if !strings.Contains(capture.messages[0].TextBody, "123456") {
			t.Fatalf("body does not carry the code")
		}
	}
}
