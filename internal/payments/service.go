package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

const (
	razorpayEventCaptured = "payment.captured"
	razorpayEventFailed   = "payment.failed"
)

// Service drives payment attempts end to end: gateway order creation, client
// callback verification, and webhook ingestion. All state changes funnel
// through the reconciler.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	VerifyRazorpay(ctx context.Context, input VerifyInput) (Outcome, error)
	ConfirmStripe(ctx context.Context, input ConfirmStripeInput) (Outcome, error)
	HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) (Outcome, error)
	HandleStripeEvent(ctx context.Context, event *stripe.Event) (Outcome, error)
	ListAttempts(ctx context.Context, orderID uint) ([]models.PaymentAttempt, error)
}

type service struct {
	attempts   Repository
	orders     orders.Repository
	razorpay   *RazorpayClient
	stripe     *StripeGateway
	reconciler *Reconciler
	logg       *logger.Logger
}

// ServiceParams bundles the service dependencies.
type ServiceParams struct {
	Attempts   Repository
	Orders     orders.Repository
	Razorpay   *RazorpayClient
	Stripe     *StripeGateway
	Reconciler *Reconciler
	Logger     *logger.Logger
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempts repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		attempts:   params.Attempts,
		orders:     params.Orders,
		razorpay:   params.Razorpay,
		stripe:     params.Stripe,
		reconciler: params.Reconciler,
		logg:       params.Logger,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Provider != enums.PaymentProviderRazorpay && input.Provider != enums.PaymentProviderStripe {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment provider")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.UserID != uuid.Nil && order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if orders.IsTerminal(order.OrderStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
	}

	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	switch input.Provider {
	case enums.PaymentProviderRazorpay:
		return s.initiateRazorpay(ctx, order, input)
	default:
		return s.initiateStripe(ctx, order, input)
	}
}

func (s *service) initiateRazorpay(ctx context.Context, order *models.Order, input InitiateInput) (*InitiateResult, error) {
	if s.razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "razorpay gateway not configured")
	}

	gatewayOrder, err := s.razorpay.CreateOrder(ctx, order.TotalAmount, "INR", order.OrderNumber, map[string]string{
		"order_number": order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	attempt, err := s.recordAttempt(ctx, order, input, enums.PaymentProviderRazorpay, gatewayOrder.ID, types.JSONMap{
		"razorpay_order_status": gatewayOrder.Status,
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "razorpay order created")
	return &InitiateResult{
		AttemptID:       attempt.ID,
		Provider:        enums.PaymentProviderRazorpay,
		ProviderOrderID: gatewayOrder.ID,
		Amount:          order.TotalAmount,
		Currency:        gatewayOrder.Currency,
		KeyID:           s.razorpay.KeyID(),
	}, nil
}

func (s *service) initiateStripe(ctx context.Context, order *models.Order, input InitiateInput) (*InitiateResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe gateway not configured")
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, order.TotalAmount, "inr", order.OrderNumber)
	if err != nil {
		return nil, err
	}

	attempt, err := s.recordAttempt(ctx, order, input, enums.PaymentProviderStripe, intent.ID, types.JSONMap{
		"payment_intent_status": string(intent.Status),
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "stripe payment intent created")
	return &InitiateResult{
		AttemptID:       attempt.ID,
		Provider:        enums.PaymentProviderStripe,
		ProviderOrderID: intent.ID,
		Amount:          order.TotalAmount,
		Currency:        string(intent.Currency),
		ClientSecret:    intent.ClientSecret,
	}, nil
}

func (s *service) recordAttempt(ctx context.Context, order *models.Order, input InitiateInput, provider enums.PaymentProvider, providerOrderID string, response types.JSONMap) (*models.PaymentAttempt, error) {
	attempt := &models.PaymentAttempt{
		ID:              uuid.New(),
		OrderID:         order.ID,
		Provider:        provider,
		ProviderOrderID: &providerOrderID,
		GatewayResponse: response,
	}
	if input.UserID != uuid.Nil {
		userID := input.UserID
		attempt.UserID = &userID
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment attempt")
	}
	return attempt, nil
}

func (s *service) VerifyRazorpay(ctx context.Context, input VerifyInput) (Outcome, error) {
	if s.razorpay == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "razorpay gateway not configured")
	}
	if input.ProviderOrderID == "" || input.ProviderPaymentID == "" || input.Signature == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id and signature required")
	}

	if !s.razorpay.VerifyPaymentSignature(input.ProviderOrderID, input.ProviderPaymentID, input.Signature) {
		return "", pkgerrors.New(pkgerrors.CodeSignature, "payment signature verification failed")
	}

	return s.reconciler.Apply(ctx, Signal{
		Provider:          enums.PaymentProviderRazorpay,
		ProviderOrderID:   input.ProviderOrderID,
		ProviderPaymentID: input.ProviderPaymentID,
		Success:           true,
		Raw: types.JSONMap{
			"source":    "checkout_callback",
			"signature": input.Signature,
		},
	})
}

type razorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Method  string `json:"method"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (s *service) HandleRazorpayWebhook(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if s.razorpay == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "razorpay gateway not configured")
	}
	if !s.razorpay.VerifyWebhookSignature(body, signature) {
		return "", pkgerrors.New(pkgerrors.CodeSignature, "webhook signature verification failed")
	}

	// the signature already authenticated the delivery; an unparseable body
	// is acked so the provider stops retrying it
	var event razorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("razorpay webhook body undecodable, acking: %v", err))
		return OutcomeIgnored, nil
	}

	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		s.logg.Warn(ctx, "razorpay webhook payment entity missing order id, acking")
		return OutcomeIgnored, nil
	}

	var success bool
	switch event.Event {
	case razorpayEventCaptured:
		success = true
	case razorpayEventFailed:
		success = false
	default:
		// irrelevant event types are acknowledged without touching state
		return OutcomeIgnored, nil
	}

	var mode *string
	if entity.Method != "" {
		mode = &entity.Method
	}

	return s.reconciler.Apply(ctx, Signal{
		Provider:          enums.PaymentProviderRazorpay,
		ProviderOrderID:   entity.OrderID,
		ProviderPaymentID: entity.ID,
		Mode:              mode,
		Success:           success,
		Raw: types.JSONMap{
			"source": "webhook",
			"event":  event.Event,
			"status": entity.Status,
		},
	})
}

func (s *service) ConfirmStripe(ctx context.Context, input ConfirmStripeInput) (Outcome, error) {
	if s.stripe == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "stripe gateway not configured")
	}
	if input.PaymentIntentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	intent, err := s.stripe.RetrievePaymentIntent(ctx, input.PaymentIntentID)
	if err != nil {
		return "", err
	}

	var success bool
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		success = true
	case stripe.PaymentIntentStatusCanceled:
		success = false
	default:
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent not settled").WithDetails(map[string]any{
			"status": string(intent.Status),
		})
	}

	return s.reconciler.Apply(ctx, Signal{
		Provider:          enums.PaymentProviderStripe,
		ProviderOrderID:   intent.ID,
		ProviderPaymentID: intent.ID,
		Success:           success,
		Raw: types.JSONMap{
			"source": "client_confirmation",
			"status": string(intent.Status),
		},
	})
}

func (s *service) HandleStripeEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var success bool
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		success = true
	case stripe.EventTypePaymentIntentPaymentFailed:
		success = false
	default:
		return OutcomeIgnored, nil
	}

	// signature-verified event with an unusable payload: ack it, same as the
	// razorpay path
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("stripe event payload undecodable, acking: %v", err))
		return OutcomeIgnored, nil
	}
	if intent.ID == "" {
		s.logg.Warn(ctx, "stripe event payment intent missing id, acking")
		return OutcomeIgnored, nil
	}

	return s.reconciler.Apply(ctx, Signal{
		Provider:          enums.PaymentProviderStripe,
		ProviderOrderID:   intent.ID,
		ProviderPaymentID: intent.ID,
		Success:           success,
		Raw: types.JSONMap{
			"source": "webhook",
			"event":  string(event.Type),
			"status": string(intent.Status),
		},
	})
}

func (s *service) ListAttempts(ctx context.Context, orderID uint) ([]models.PaymentAttempt, error) {
	if orderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	attempts, err := s.attempts.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment attempts")
	}
	return attempts, nil
}
