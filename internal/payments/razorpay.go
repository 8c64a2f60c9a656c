package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/config"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/metrics"
)

// RazorpayOrder is the subset of Razorpay's order object we consume.
type RazorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RazorpayClient talks to Razorpay's Orders API and verifies its signatures.
type RazorpayClient struct {
	cfg     config.RazorpayConfig
	httpc   *http.Client
	metrics *metrics.PaymentMetrics
}

// NewRazorpayClient validates credentials and builds the REST client.
func NewRazorpayClient(cfg config.RazorpayConfig, m *metrics.PaymentMetrics) (*RazorpayClient, error) {
	if strings.TrimSpace(cfg.KeyID) == "" {
		return nil, fmt.Errorf("razorpay key id is required")
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key secret is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayClient{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: timeout},
		metrics: m,
	}, nil
}

// KeyID returns the public key the frontend checkout needs.
func (c *RazorpayClient) KeyID() string {
	return c.cfg.KeyID
}

// CreateOrder registers an order with Razorpay. Amount is converted to the
// currency's minor unit (paise for INR).
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, notes map[string]string) (*RazorpayOrder, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}

	payload := map[string]any{
		"amount":   amount.Shift(2).IntPart(),
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode razorpay order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build razorpay request")
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpc.Do(req)
	c.metrics.ObserveGatewayLatency("razorpay", "create_order", time.Since(started))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call razorpay")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read razorpay response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("razorpay order creation failed with status %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": string(raw)})
	}

	var order RazorpayOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode razorpay order")
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay order id missing in response")
	}
	return &order, nil
}

// VerifyPaymentSignature checks the checkout callback signature, an
// HMAC-SHA256 of "<order_id>|<payment_id>" keyed with the API secret.
func (c *RazorpayClient) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool {
	if providerOrderID == "" || providerPaymentID == "" || signature == "" {
		return false
	}
	expected := hmacHex([]byte(c.cfg.KeySecret), []byte(providerOrderID+"|"+providerPaymentID))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header, an
// HMAC-SHA256 of the raw body keyed with the webhook secret.
func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	expected := hmacHex([]byte(c.cfg.WebhookSecret), body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func hmacHex(key, message []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
