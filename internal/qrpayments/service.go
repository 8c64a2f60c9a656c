package qrpayments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/payments"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/security"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

const qrIDPrefix = "QR-"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput opens a QR payment session for an order.
type CreateInput struct {
	OrderID uint
	UserID  uuid.UUID
}

// VerifyInput settles a QR session with the customer's UPI transaction details.
type VerifyInput struct {
	QRID           string
	UserID         uuid.UUID
	TransactionID  string
	TransactionRef string
}

// Service manages the QR payment session lifecycle. Sessions expire lazily:
// expiry is evaluated whenever a session is read, never by a background job.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.QRPaymentSession, error)
	Status(ctx context.Context, qrID string) (*models.QRPaymentSession, error)
	Verify(ctx context.Context, input VerifyInput) (*models.QRPaymentSession, error)
	Image(ctx context.Context, qrID string) ([]byte, error)
}

type service struct {
	repo       Repository
	orders     orders.Repository
	attempts   payments.Repository
	reconciler *payments.Reconciler
	tx         txRunner
	renderer   Renderer
	upiCfg     config.UPIConfig
	qrCfg      config.QRConfig
	logg       *logger.Logger
}

// ServiceParams bundles the service dependencies.
type ServiceParams struct {
	Repo       Repository
	Orders     orders.Repository
	Attempts   payments.Repository
	Reconciler *payments.Reconciler
	Tx         txRunner
	Renderer   Renderer
	UPI        config.UPIConfig
	QR         config.QRConfig
	Logger     *logger.Logger
}

// NewService builds the QR payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("qr session repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Attempts == nil {
		return nil, fmt.Errorf("payment attempts repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		orders:     params.Orders,
		attempts:   params.Attempts,
		reconciler: params.Reconciler,
		tx:         params.Tx,
		renderer:   params.Renderer,
		upiCfg:     params.UPI,
		qrCfg:      params.QR,
		logg:       params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.QRPaymentSession, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	qrID, err := generateQRID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr id")
	}

	var session *models.QRPaymentSession
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.UserID != uuid.Nil && order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		if orders.IsTerminal(order.OrderStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed")
		}

		now := time.Now().UTC()
		payload := BuildUPIURI(s.upiCfg.MerchantID, s.upiCfg.PayeeName, order.TotalAmount,
			fmt.Sprintf("Payment for %s", order.OrderNumber))

		row := &models.QRPaymentSession{
			QRID:       qrID,
			OrderID:    order.ID,
			UPIID:      s.upiCfg.MerchantID,
			Amount:     order.TotalAmount,
			Currency:   "INR",
			PayloadURI: payload,
			Status:     enums.QRSessionStatusPending,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.sessionTTL()),
		}
		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create qr session")
		}

		attempt := &models.PaymentAttempt{
			ID:              uuid.New(),
			OrderID:         order.ID,
			Provider:        enums.PaymentProviderQR,
			ProviderOrderID: &row.QRID,
			UPIID:           &row.UPIID,
			QRSessionID:     &row.ID,
			GatewayResponse: types.JSONMap{"qr_id": row.QRID},
		}
		if input.UserID != uuid.Nil {
			userID := input.UserID
			attempt.UserID = &userID
		}
		if err := s.attempts.WithTx(tx).Create(ctx, attempt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record qr payment attempt")
		}

		session = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("qr session %s opened", session.QRID))
	return session, nil
}

func (s *service) Status(ctx context.Context, qrID string) (*models.QRPaymentSession, error) {
	if qrID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr id required")
	}

	session, err := s.repo.FindByQRID(ctx, qrID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "qr session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr session")
	}

	return s.lazyExpire(ctx, session)
}

func (s *service) Verify(ctx context.Context, input VerifyInput) (*models.QRPaymentSession, error) {
	if input.QRID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr id required")
	}
	if input.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	var result *models.QRPaymentSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := repo.FindByQRIDForUpdate(ctx, input.QRID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "qr session not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr session")
		}

		// a second verify of a settled session is a no-op
		if session.Status == enums.QRSessionStatusCompleted {
			result = session
			return nil
		}
		if session.Status != enums.QRSessionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("qr session is %s", session.Status))
		}

		now := time.Now().UTC()
		if now.After(session.ExpiresAt) {
			if err := repo.Update(ctx, session.ID, map[string]any{"status": enums.QRSessionStatusExpired}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire qr session")
			}
			return pkgerrors.New(pkgerrors.CodeExpired, "qr session has expired")
		}

		outcome, err := s.reconciler.ApplyTx(ctx, tx, payments.Signal{
			Provider:          enums.PaymentProviderQR,
			ProviderOrderID:   session.QRID,
			ProviderPaymentID: input.TransactionID,
			Success:           true,
			Raw: types.JSONMap{
				"source":          "qr_verify",
				"transaction_id":  input.TransactionID,
				"transaction_ref": input.TransactionRef,
			},
		})
		if err != nil {
			return err
		}
		if outcome == payments.OutcomeUnknownReference {
			return pkgerrors.New(pkgerrors.CodeInternal, "qr session has no payment attempt")
		}

		updates := map[string]any{
			"status":         enums.QRSessionStatusCompleted,
			"transaction_id": input.TransactionID,
			"verified_at":    now,
		}
		if input.TransactionRef != "" {
			updates["transaction_ref"] = input.TransactionRef
		}
		if err := repo.Update(ctx, session.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle qr session")
		}

		session.Status = enums.QRSessionStatusCompleted
		session.TransactionID = &input.TransactionID
		if input.TransactionRef != "" {
			ref := input.TransactionRef
			session.TransactionRef = &ref
		}
		session.VerifiedAt = &now
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("qr session %s settled", result.QRID))
	return result, nil
}

func (s *service) Image(ctx context.Context, qrID string) ([]byte, error) {
	session, err := s.Status(ctx, qrID)
	if err != nil {
		return nil, err
	}
	if session.Status == enums.QRSessionStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "qr session has expired")
	}
	if s.renderer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "qr renderer not configured")
	}
	return s.renderer.Render(ctx, session.PayloadURI)
}

// lazyExpire flips a pending session to expired once its deadline passes and
// persists the flip so later reads agree.
func (s *service) lazyExpire(ctx context.Context, session *models.QRPaymentSession) (*models.QRPaymentSession, error) {
	if session.Status != enums.QRSessionStatusPending {
		return session, nil
	}
	if time.Now().UTC().Before(session.ExpiresAt) {
		return session, nil
	}

	if err := s.repo.Update(ctx, session.ID, map[string]any{"status": enums.QRSessionStatusExpired}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire qr session")
	}
	session.Status = enums.QRSessionStatusExpired
	return session, nil
}

func (s *service) sessionTTL() time.Duration {
	if s.qrCfg.Expiry > 0 {
		return s.qrCfg.Expiry
	}
	return 15 * time.Minute
}

func generateQRID() (string, error) {
	token, err := security.GenerateHexToken(12)
	if err != nil {
		return "", err
	}
	return qrIDPrefix + token, nil
}
