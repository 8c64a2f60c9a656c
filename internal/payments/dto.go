package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// InitiateInput starts a new payment attempt for an order.
type InitiateInput struct {
	OrderID  uint
	UserID   uuid.UUID
	Provider enums.PaymentProvider
}

// InitiateResult carries everything the client needs to drive the gateway's
// checkout flow.
type InitiateResult struct {
	AttemptID       uuid.UUID
	Provider        enums.PaymentProvider
	ProviderOrderID string
	Amount          decimal.Decimal
	Currency        string
	// KeyID is set for Razorpay checkout.
	KeyID string
	// ClientSecret is set for Stripe payment intents.
	ClientSecret string
}

// VerifyInput is the client-side Razorpay checkout callback payload.
type VerifyInput struct {
	UserID            uuid.UUID
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// ConfirmStripeInput is the client-side Stripe confirmation payload. The
// intent state is re-read from Stripe rather than trusted from the client.
type ConfirmStripeInput struct {
	UserID          uuid.UUID
	PaymentIntentID string
}

// Signal is one authenticated payment event, normalized across callback and
// webhook sources. Callers verify signatures before building a Signal.
type Signal struct {
	Provider          enums.PaymentProvider
	ProviderOrderID   string
	ProviderPaymentID string
	Mode              *string
	Success           bool
	Raw               types.JSONMap
}

// Outcome describes what reconciliation did with a signal.
type Outcome string

const (
	// OutcomeApplied means the payment was marked completed and the order advanced.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the attempt was already verified; nothing changed.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnknownReference means no attempt matches the provider order id.
	// The signal is acknowledged and dropped.
	OutcomeUnknownReference Outcome = "unknown_reference"
	// OutcomeFailureRecorded means a failure signal moved the payment to failed.
	OutcomeFailureRecorded Outcome = "failure_recorded"
	// OutcomeIgnored means a failure arrived after a success and was discarded.
	OutcomeIgnored Outcome = "ignored"
)
