package qrpayments

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/payments"
	"github.com/mapmarket/mapmarket-backend/internal/timeline"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSessionRepo struct {
	byQRID map[string]*models.QRPaymentSession
	nextID uint
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byQRID: map[string]*models.QRPaymentSession{}}
}

func (s *stubSessionRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSessionRepo) Create(_ context.Context, session *models.QRPaymentSession) error {
	s.nextID++
	session.ID = s.nextID
	s.byQRID[session.QRID] = session
	return nil
}

func (s *stubSessionRepo) FindByQRID(_ context.Context, qrID string) (*models.QRPaymentSession, error) {
	session, ok := s.byQRID[qrID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *stubSessionRepo) FindByQRIDForUpdate(ctx context.Context, qrID string) (*models.QRPaymentSession, error) {
	return s.FindByQRID(ctx, qrID)
}

func (s *stubSessionRepo) ListByOrder(_ context.Context, orderID uint) ([]models.QRPaymentSession, error) {
	var out []models.QRPaymentSession
	for _, session := range s.byQRID {
		if session.OrderID == orderID {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *stubSessionRepo) Update(_ context.Context, id uint, updates map[string]any) error {
	for _, session := range s.byQRID {
		if session.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "status":
				session.Status = value.(enums.QRSessionStatus)
			case "transaction_id":
				txnID := value.(string)
				session.TransactionID = &txnID
			case "transaction_ref":
				ref := value.(string)
				session.TransactionRef = &ref
			case "verified_at":
				verifiedAt := value.(time.Time)
				session.VerifiedAt = &verifiedAt
			}
		}
	}
	return nil
}

type stubAttemptRepo struct {
	byProviderOrder map[string]*models.PaymentAttempt
}

func newStubAttemptRepo() *stubAttemptRepo {
	return &stubAttemptRepo{byProviderOrder: map[string]*models.PaymentAttempt{}}
}

func (s *stubAttemptRepo) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubAttemptRepo) Create(_ context.Context, attempt *models.PaymentAttempt) error {
	if attempt.ProviderOrderID != nil {
		s.byProviderOrder[*attempt.ProviderOrderID] = attempt
	}
	return nil
}

func (s *stubAttemptRepo) FindByID(_ context.Context, id uuid.UUID) (*models.PaymentAttempt, error) {
	for _, attempt := range s.byProviderOrder {
		if attempt.ID == id {
			clone := *attempt
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAttemptRepo) FindByProviderOrderID(_ context.Context, providerOrderID string) (*models.PaymentAttempt, error) {
	attempt, ok := s.byProviderOrder[providerOrderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *attempt
	return &clone, nil
}

func (s *stubAttemptRepo) FindByProviderOrderIDForUpdate(ctx context.Context, providerOrderID string) (*models.PaymentAttempt, error) {
	return s.FindByProviderOrderID(ctx, providerOrderID)
}

func (s *stubAttemptRepo) ListByOrder(_ context.Context, orderID uint) ([]models.PaymentAttempt, error) {
	var out []models.PaymentAttempt
	for _, attempt := range s.byProviderOrder {
		if attempt.OrderID == orderID {
			out = append(out, *attempt)
		}
	}
	return out, nil
}

func (s *stubAttemptRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) error {
	for _, attempt := range s.byProviderOrder {
		if attempt.ID != id {
			continue
		}
		for key, value := range updates {
			switch key {
			case "provider_payment_id":
				paymentID := value.(string)
				attempt.ProviderPaymentID = &paymentID
			case "payment_verified_at":
				verifiedAt := value.(time.Time)
				attempt.VerifiedAt = &verifiedAt
			}
		}
	}
	return nil
}

type stubOrderRepo struct {
	orders map[uint]*models.Order
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uint]*models.Order{}}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(_ context.Context, id uint) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *stubOrderRepo) FindByIDForUpdate(ctx context.Context, id uint) (*models.Order, error) {
	return s.FindByID(ctx, id)
}

func (s *stubOrderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			clone := *order
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) List(_ context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrderRepo) Update(_ context.Context, id uint, updates map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "payment_status":
			order.PaymentStatus = value.(enums.PaymentStatus)
		case "order_status":
			order.OrderStatus = value.(enums.OrderStatus)
		case "payment_reference":
			ref := value.(string)
			order.PaymentReference = &ref
		}
	}
	return nil
}

type stubTimelineRepo struct {
	entries []models.OrderTimelineEntry
}

func (s *stubTimelineRepo) WithTx(tx *gorm.DB) timeline.Repository { return s }

func (s *stubTimelineRepo) Append(_ context.Context, entry *models.OrderTimelineEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubTimelineRepo) ListByOrder(_ context.Context, orderID uint) ([]models.OrderTimelineEntry, error) {
	return s.entries, nil
}

type stubRenderer struct {
	payloads []string
}

func (s *stubRenderer) Render(_ context.Context, payload string) ([]byte, error) {
	s.payloads = append(s.payloads, payload)
	return []byte("png-bytes"), nil
}

type qrFixture struct {
	svc      Service
	sessions *stubSessionRepo
	attempts *stubAttemptRepo
	orders   *stubOrderRepo
	tlRepo   *stubTimelineRepo
	renderer *stubRenderer
	userID   uuid.UUID
}

func newQRFixture(t *testing.T) *qrFixture {
	t.Helper()

	sessions := newStubSessionRepo()
	attempts := newStubAttemptRepo()
	orderRepo := newStubOrderRepo()
	tlRepo := &stubTimelineRepo{}
	renderer := &stubRenderer{}

	recorder, err := timeline.NewRecorder(tlRepo)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "qr-test", Level: zerolog.ErrorLevel, Output: io.Discard})
	reconciler, err := payments.NewReconciler(attempts, orderRepo, stubTx{}, recorder, nil, logg)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Repo:       sessions,
		Orders:     orderRepo,
		Attempts:   attempts,
		Reconciler: reconciler,
		Tx:         stubTx{},
		Renderer:   renderer,
		UPI:        config.UPIConfig{MerchantID: "merchant@upi", PayeeName: "MapMarket"},
		QR:         config.QRConfig{Expiry: 15 * time.Minute},
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &qrFixture{
		svc:      svc,
		sessions: sessions,
		attempts: attempts,
		orders:   orderRepo,
		tlRepo:   tlRepo,
		renderer: renderer,
		userID:   uuid.New(),
	}
}

func (f *qrFixture) seedOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            id,
		OrderNumber:   "MAP-1A2B3C4D",
		UserID:        f.userID,
		TotalAmount:   decimal.NewFromFloat(1148.50),
		PaymentMethod: enums.PaymentMethodQRCode,
		PaymentStatus: enums.PaymentStatusPending,
		OrderStatus:   enums.OrderStatusPlaced,
	}
	f.orders.orders[id] = order
	return order
}

func TestCreateOpensSessionWithAttempt(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 7)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 7, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !strings.HasPrefix(session.QRID, "QR-") || len(session.QRID) != 15 {
		t.Fatalf("qr id = %q, want QR- prefix and 12 hex chars", session.QRID)
	}
	if session.Status != enums.QRSessionStatusPending {
		t.Fatalf("status = %s, want pending", session.Status)
	}
	wantPayload := "upi://pay?pa=merchant%40upi&pn=MapMarket&am=1148.50&cu=INR&tn=Payment+for+MAP-1A2B3C4D"
	if session.PayloadURI != wantPayload {
		t.Fatalf("payload = %q, want %q", session.PayloadURI, wantPayload)
	}
	if remaining := time.Until(session.ExpiresAt); remaining < 14*time.Minute || remaining > 15*time.Minute {
		t.Fatalf("expires in %s, want about 15m", remaining)
	}

	attempt, err := f.attempts.FindByProviderOrderID(context.Background(), session.QRID)
	if err != nil {
		t.Fatalf("attempt not recorded: %v", err)
	}
	if attempt.Provider != enums.PaymentProviderQR {
		t.Fatalf("attempt provider = %s, want qr_payment", attempt.Provider)
	}
	if attempt.OrderID != 7 {
		t.Fatalf("attempt order id = %d, want 7", attempt.OrderID)
	}
}

func TestCreateRejectsPaidOrder(t *testing.T) {
	f := newQRFixture(t)
	order := f.seedOrder(t, 8)
	order.PaymentStatus = enums.PaymentStatusCompleted

	_, err := f.svc.Create(context.Background(), CreateInput{OrderID: 8, UserID: f.userID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestCreateRejectsForeignOrder(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 9)

	_, err := f.svc.Create(context.Background(), CreateInput{OrderID: 9, UserID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestStatusExpiresLazily(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 10)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 10, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.sessions.byQRID[session.QRID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	got, err := f.svc.Status(context.Background(), session.QRID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != enums.QRSessionStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}

	// the flip must be persisted, not just reported
	stored := f.sessions.byQRID[session.QRID]
	if stored.Status != enums.QRSessionStatusExpired {
		t.Fatalf("stored status = %s, want expired", stored.Status)
	}
}

func TestVerifySettlesSessionAndOrder(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 11)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 11, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.Verify(context.Background(), VerifyInput{
		QRID:           session.QRID,
		UserID:         f.userID,
		TransactionID:  "UPI123456",
		TransactionRef: "REF789",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != enums.QRSessionStatusCompleted {
		t.Fatalf("session status = %s, want completed", got.Status)
	}
	if got.TransactionID == nil || *got.TransactionID != "UPI123456" {
		t.Fatalf("transaction id not recorded")
	}
	if got.VerifiedAt == nil {
		t.Fatalf("verified_at not set")
	}

	order := f.orders.orders[uint(11)]
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		t.Fatalf("order payment status = %s, want completed", order.PaymentStatus)
	}
	if order.OrderStatus != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s, want confirmed", order.OrderStatus)
	}
	if order.PaymentReference == nil || *order.PaymentReference != "UPI123456" {
		t.Fatalf("payment reference not recorded")
	}
	if len(f.tlRepo.entries) == 0 {
		t.Fatalf("expected timeline entry for settled payment")
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 12)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 12, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	input := VerifyInput{QRID: session.QRID, UserID: f.userID, TransactionID: "UPI-ONCE"}
	if _, err := f.svc.Verify(context.Background(), input); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	timelineCount := len(f.tlRepo.entries)

	got, err := f.svc.Verify(context.Background(), input)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if got.Status != enums.QRSessionStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if len(f.tlRepo.entries) != timelineCount {
		t.Fatalf("second verify wrote %d extra timeline entries", len(f.tlRepo.entries)-timelineCount)
	}
}

func TestVerifyRejectsExpiredSession(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 13)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 13, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.sessions.byQRID[session.QRID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = f.svc.Verify(context.Background(), VerifyInput{QRID: session.QRID, UserID: f.userID, TransactionID: "UPI-LATE"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeExpired) {
		t.Fatalf("err = %v, want expired", err)
	}

	stored := f.sessions.byQRID[session.QRID]
	if stored.Status != enums.QRSessionStatusExpired {
		t.Fatalf("stored status = %s, want expired", stored.Status)
	}

	order := f.orders.orders[uint(13)]
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order payment status = %s, want untouched pending", order.PaymentStatus)
	}
}

func TestImageRendersPendingSession(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 14)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 14, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	image, err := f.svc.Image(context.Background(), session.QRID)
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if string(image) != "png-bytes" {
		t.Fatalf("unexpected image payload")
	}
	if len(f.renderer.payloads) != 1 || f.renderer.payloads[0] != session.PayloadURI {
		t.Fatalf("renderer did not receive session payload")
	}
}

func TestImageRejectsExpiredSession(t *testing.T) {
	f := newQRFixture(t)
	f.seedOrder(t, 15)

	session, err := f.svc.Create(context.Background(), CreateInput{OrderID: 15, UserID: f.userID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.sessions.byQRID[session.QRID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = f.svc.Image(context.Background(), session.QRID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeExpired) {
		t.Fatalf("err = %v, want expired", err)
	}
}
