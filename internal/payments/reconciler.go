package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/timeline"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/metrics"
)

const (
	timelineStatusPaymentCompleted = "payment_completed"
	timelineStatusPaymentFailed    = "payment_failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Reconciler applies authenticated payment signals to the order aggregate.
// Every signal for the same provider order id is applied at most once; a
// completed payment is never downgraded.
type Reconciler struct {
	attempts Repository
	orders   orders.Repository
	tx       txRunner
	timeline timeline.Recorder
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

// NewReconciler builds the reconciliation engine.
func NewReconciler(attempts Repository, orderRepo orders.Repository, tx txRunner, recorder timeline.Recorder, m *metrics.PaymentMetrics, logg *logger.Logger) (*Reconciler, error) {
	if attempts == nil {
		return nil, fmt.Errorf("payment attempts repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("timeline recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		attempts: attempts,
		orders:   orderRepo,
		tx:       tx,
		timeline: recorder,
		metrics:  m,
		logg:     logg,
	}, nil
}

// Apply reconciles one signal. Unknown references are acknowledged and
// dropped rather than erroring so gateways stop retrying them.
func (r *Reconciler) Apply(ctx context.Context, signal Signal) (Outcome, error) {
	if signal.ProviderOrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provider order id required")
	}
	if !signal.Provider.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid payment provider")
	}

	ctx = r.logg.WithProvider(ctx, signal.Provider.String())

	outcome := OutcomeUnknownReference
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = r.ApplyTx(ctx, tx, signal)
		return txErr
	})
	if err != nil {
		r.metrics.IncReconciliation(signal.Provider.String(), "error")
		return "", err
	}

	r.metrics.IncReconciliation(signal.Provider.String(), string(outcome))
	r.logg.Info(ctx, fmt.Sprintf("payment signal reconciled: %s", outcome))
	return outcome, nil
}

// ApplyTx reconciles a signal inside an existing transaction. Callers that
// need to update their own rows atomically with the payment state use this
// directly; everyone else goes through Apply.
func (r *Reconciler) ApplyTx(ctx context.Context, tx *gorm.DB, signal Signal) (Outcome, error) {
	attempts := r.attempts.WithTx(tx)
	attempt, err := attempts.FindByProviderOrderIDForUpdate(ctx, signal.ProviderOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeUnknownReference, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment attempt")
	}

	orderRepo := r.orders.WithTx(tx)
	order, err := orderRepo.FindByIDForUpdate(ctx, attempt.OrderID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for reconciliation")
	}

	if signal.Success {
		return r.applySuccess(ctx, tx, attempts, orderRepo, attempt, order, signal)
	}
	return r.applyFailure(ctx, tx, attempts, orderRepo, attempt, order, signal)
}

func (r *Reconciler) applySuccess(ctx context.Context, tx *gorm.DB, attempts Repository, orderRepo orders.Repository, attempt *models.PaymentAttempt, order *models.Order, signal Signal) (Outcome, error) {
	if attempt.VerifiedAt != nil {
		return OutcomeDuplicate, nil
	}
	// a different attempt already settled this order; only one attempt may
	// ever resolve to completed
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return OutcomeIgnored, nil
	}

	now := time.Now().UTC()
	attemptUpdates := map[string]any{
		"payment_verified_at": now,
	}
	if signal.ProviderPaymentID != "" {
		attemptUpdates["provider_payment_id"] = signal.ProviderPaymentID
	}
	if signal.Mode != nil {
		attemptUpdates["payment_mode"] = *signal.Mode
	}
	if signal.Raw != nil {
		attemptUpdates["gateway_response"] = signal.Raw
	}
	if err := attempts.Update(ctx, attempt.ID, attemptUpdates); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark attempt verified")
	}

	orderUpdates := map[string]any{
		"payment_status": enums.PaymentStatusCompleted,
	}
	if signal.ProviderPaymentID != "" {
		orderUpdates["payment_reference"] = signal.ProviderPaymentID
	}
	if orders.CanTransition(order.OrderStatus, enums.OrderStatusConfirmed) {
		orderUpdates["order_status"] = enums.OrderStatusConfirmed
		orderUpdates["confirmed_at"] = now
	}
	if err := orderRepo.Update(ctx, order.ID, orderUpdates); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}

	if err := r.timeline.Record(ctx, tx, timeline.Entry{
		OrderID:     order.ID,
		Status:      timelineStatusPaymentCompleted,
		Description: fmt.Sprintf("Payment completed via %s", signal.Provider),
		Metadata:    signal.Raw,
	}); err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (r *Reconciler) applyFailure(ctx context.Context, tx *gorm.DB, attempts Repository, orderRepo orders.Repository, attempt *models.PaymentAttempt, order *models.Order, signal Signal) (Outcome, error) {
	// success is authoritative over failure regardless of arrival order
	if attempt.VerifiedAt != nil || order.PaymentStatus == enums.PaymentStatusCompleted {
		return OutcomeIgnored, nil
	}

	if signal.Raw != nil {
		if err := attempts.Update(ctx, attempt.ID, map[string]any{"gateway_response": signal.Raw}); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed attempt")
		}
	}

	if order.PaymentStatus == enums.PaymentStatusPending {
		if err := orderRepo.Update(ctx, order.ID, map[string]any{"payment_status": enums.PaymentStatusFailed}); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
	}

	if err := r.timeline.Record(ctx, tx, timeline.Entry{
		OrderID:     order.ID,
		Status:      timelineStatusPaymentFailed,
		Description: fmt.Sprintf("Payment failed via %s", signal.Provider),
		Metadata:    signal.Raw,
	}); err != nil {
		return "", err
	}
	return OutcomeFailureRecorded, nil
}
