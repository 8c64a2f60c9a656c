package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/timeline"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/security"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

const orderNumberPrefix = "MAP-"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, userID uuid.UUID, orderID uint, admin bool) (*Detail, error)
	GetByNumber(ctx context.Context, userID uuid.UUID, orderNumber string, admin bool) (*Detail, error)
	List(ctx context.Context, input ListInput) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	catalog  Catalog
	timeline timeline.Recorder
	notifier DeliveryNotifier
	otpCfg   config.OTPConfig
	logg     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, catalog Catalog, recorder timeline.Recorder, notifier DeliveryNotifier, otpCfg config.OTPConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("timeline recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		catalog:  catalog,
		timeline: recorder,
		notifier: notifier,
		otpCfg:   otpCfg,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	orderNumber, err := generateOrderNumber()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := make(types.OrderItems, 0, len(input.Items))
		total := decimal.Zero

		for _, item := range input.Items {
			product, err := s.catalog.FindForUpdate(ctx, tx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", item.ProductID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if product.Stock < item.Qty {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for %s", item.ProductID)).
					WithDetails(map[string]any{"product_id": item.ProductID, "available": product.Stock, "requested": item.Qty})
			}
			if err := s.catalog.AdjustStock(ctx, tx, item.ProductID, -item.Qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct stock")
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
			total = total.Add(lineTotal)
			items = append(items, types.OrderItem{
				ProductID: product.ProductID,
				Name:      product.Name,
				Qty:       item.Qty,
				UnitPrice: product.Price,
			})
		}

		order := &models.Order{
			OrderNumber:   orderNumber,
			UserID:        input.UserID,
			BillingInfoID: input.BillingInfoID,
			Items:         items,
			TotalAmount:   total,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: enums.PaymentStatusPending,
			OrderStatus:   enums.OrderStatusPlaced,
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := s.timeline.Record(ctx, tx, timeline.Entry{
			OrderID:     order.ID,
			Status:      enums.OrderStatusPlaced.String(),
			Description: "Order placed",
			UpdatedBy:   input.UserID.String(),
		}); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, created.OrderNumber)
	s.logg.Info(ctx, "order placed")
	return created, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, orderID uint, admin bool) (*Detail, error) {
	if orderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !admin && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}

	entries, err := s.timeline.History(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: *order, Timeline: entries}, nil
}

func (s *service) GetByNumber(ctx context.Context, userID uuid.UUID, orderNumber string, admin bool) (*Detail, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}

	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return s.Get(ctx, userID, order.ID, admin)
}

func (s *service) List(ctx context.Context, input ListInput) (*OrderList, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	list, err := s.repo.List(ctx, input.Params, ListFilters{UserID: input.UserID, Status: input.Status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	// cancellation carries its own side effects (reason, stock, refund flag)
	// and must go through Cancel
	if input.NewStatus == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation to cancel an order")
	}

	var updated *models.Order
	var otpToSend string
	var notifyEmail string

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !CanTransition(order.OrderStatus, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.OrderStatus, input.NewStatus))
		}

		now := time.Now().UTC()
		updates := map[string]any{"order_status": input.NewStatus}

		if input.DeliveryPartner != nil {
			updates["delivery_partner"] = *input.DeliveryPartner
		}
		if input.TrackingNumber != nil {
			updates["tracking_number"] = *input.TrackingNumber
		}
		if input.EstimatedDelivery != nil {
			updates["estimated_delivery"] = *input.EstimatedDelivery
		}

		switch input.NewStatus {
		case enums.OrderStatusConfirmed:
			updates["confirmed_at"] = now
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
		case enums.OrderStatusOutForDelivery:
			updates["out_for_delivery_at"] = now
			code, err := security.GenerateNumericCode(s.deliveryOTPDigits())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery otp")
			}
			updates["delivery_otp"] = code
			otpToSend = code
			if order.BillingInfo != nil {
				notifyEmail = order.BillingInfo.Email
			}
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			updates["delivery_otp"] = nil
			if order.PaymentMethod == enums.PaymentMethodCashOnDelivery {
				updates["payment_status"] = enums.PaymentStatusCompleted
			}
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		description := input.Description
		if description == "" {
			description = defaultStatusDescription(input.NewStatus)
		}
		if err := s.timeline.Record(ctx, tx, timeline.Entry{
			OrderID:     order.ID,
			Status:      input.NewStatus.String(),
			Description: description,
			Location:    input.Location,
			UpdatedBy:   input.UpdatedBy,
		}); err != nil {
			return err
		}

		refreshed, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = refreshed
		if notifyEmail == "" && refreshed.BillingInfo != nil {
			notifyEmail = refreshed.BillingInfo.Email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, updated.OrderNumber)
	s.logg.Info(ctx, fmt.Sprintf("order status updated to %s", updated.OrderStatus))

	if otpToSend != "" {
		s.sendDeliveryOTP(ctx, notifyEmail, updated.OrderNumber, otpToSend)
	}
	return updated, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.OTP == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery otp required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.UserID != uuid.Nil && order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.OrderStatus != enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not out for delivery")
		}
		if order.DeliveryOTP == nil || *order.DeliveryOTP != input.OTP {
			return pkgerrors.New(pkgerrors.CodeOTPMismatch, "incorrect delivery otp")
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"order_status": enums.OrderStatusDelivered,
			"delivered_at": now,
			"delivery_otp": nil,
		}
		if order.PaymentMethod == enums.PaymentMethodCashOnDelivery {
			updates["payment_status"] = enums.PaymentStatusCompleted
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
		}

		if err := s.timeline.Record(ctx, tx, timeline.Entry{
			OrderID:     order.ID,
			Status:      enums.OrderStatusDelivered.String(),
			Description: "Delivery confirmed with OTP",
			UpdatedBy:   input.UpdatedBy,
		}); err != nil {
			return err
		}

		refreshed, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, updated.OrderNumber)
	s.logg.Info(ctx, "order delivered")
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !input.Admin && order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if !Cancellable(order.OrderStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be cancelled", order.OrderStatus))
		}

		for _, item := range order.Items {
			if err := s.catalog.AdjustStock(ctx, tx, item.ProductID, item.Qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"order_status":  enums.OrderStatusCancelled,
			"cancel_reason": input.Reason,
			"cancelled_at":  now,
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted && order.PaymentMethod != enums.PaymentMethodCashOnDelivery {
			updates["payment_status"] = enums.PaymentStatusRefundPending
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		if err := s.timeline.Record(ctx, tx, timeline.Entry{
			OrderID:     order.ID,
			Status:      enums.OrderStatusCancelled.String(),
			Description: fmt.Sprintf("Order cancelled: %s", input.Reason),
			UpdatedBy:   input.UpdatedBy,
		}); err != nil {
			return err
		}

		refreshed, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderNumber(ctx, updated.OrderNumber)
	s.logg.Info(ctx, "order cancelled")
	return updated, nil
}

func (s *service) deliveryOTPDigits() int {
	if s.otpCfg.DeliveryDigit > 0 {
		return s.otpCfg.DeliveryDigit
	}
	return 4
}

func (s *service) sendDeliveryOTP(ctx context.Context, email, orderNumber, code string) {
	if s.notifier == nil || email == "" {
		s.logg.Warn(ctx, "delivery otp generated but no notification target")
		return
	}
	if err := s.notifier.SendDeliveryOTP(ctx, email, orderNumber, code); err != nil {
		s.logg.Error(ctx, "failed to send delivery otp", err)
	}
}

func generateOrderNumber() (string, error) {
	token, err := security.GenerateHexToken(8)
	if err != nil {
		return "", err
	}
	return orderNumberPrefix + token, nil
}

func defaultStatusDescription(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusConfirmed:
		return "Order confirmed"
	case enums.OrderStatusProcessing:
		return "Order is being processed"
	case enums.OrderStatusShipped:
		return "Order shipped"
	case enums.OrderStatusOutForDelivery:
		return "Order out for delivery"
	case enums.OrderStatusDelivered:
		return "Order delivered"
	case enums.OrderStatusCancelled:
		return "Order cancelled"
	case enums.OrderStatusReturned:
		return "Order returned"
	default:
		return "Order placed"
	}
}
