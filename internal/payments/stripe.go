package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/mapmarket/mapmarket-backend/pkg/config"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

const (
	stripeTestEnv = "test"
	stripeLiveEnv = "live"
)

// StripeGateway wraps Stripe's payment intent API plus env-specific metadata.
type StripeGateway struct {
	environment   string
	signingSecret string
}

// NewStripeGateway initializes Stripe once with the configured secrets and env.
func NewStripeGateway(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*StripeGateway, error) {
	env := cfg.Environment()
	if env != stripeTestEnv && env != stripeLiveEnv {
		return nil, fmt.Errorf("stripe environment must be %q or %q", stripeTestEnv, stripeLiveEnv)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	if env == stripeLiveEnv && strings.HasPrefix(apiKey, "sk_test_") {
		return nil, fmt.Errorf("test api key configured for live environment")
	}
	if env == stripeTestEnv && strings.HasPrefix(apiKey, "sk_live_") {
		return nil, fmt.Errorf("live api key configured for test environment")
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe gateway initialized (%s)", env))
	}

	return &StripeGateway{
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (g *StripeGateway) Environment() string {
	if g == nil {
		return ""
	}
	return g.environment
}

// SigningSecret returns the webhook signing secret.
func (g *StripeGateway) SigningSecret() string {
	if g == nil {
		return ""
	}
	return g.signingSecret
}

// CreatePaymentIntent opens a Stripe payment intent for the order amount.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency, orderNumber string) (*stripe.PaymentIntent, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if currency == "" {
		currency = "inr"
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.Shift(2).IntPart()),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_number", orderNumber)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return intent, nil
}

// RetrievePaymentIntent fetches the current state of a payment intent.
func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return intent, nil
}
