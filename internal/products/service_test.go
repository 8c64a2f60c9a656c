package products

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductRepo struct {
	byProductID map[string]*models.Product
	seq         int
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{byProductID: map[string]*models.Product{}}
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubProductRepo) Create(_ context.Context, product *models.Product) error {
	s.byProductID[product.ProductID] = product
	return nil
}

func (s *stubProductRepo) FindByProductID(_ context.Context, productID string) (*models.Product, error) {
	product, ok := s.byProductID[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *product
	return &clone, nil
}

func (s *stubProductRepo) FindByProductIDForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	return s.FindByProductID(ctx, productID)
}

func (s *stubProductRepo) List(_ context.Context, input ListInput) (*ProductList, error) {
	var items []models.Product
	for _, product := range s.byProductID {
		items = append(items, *product)
	}
	return &ProductList{Items: items, Meta: pagination.MetaFor(input.Params.Normalize(), int64(len(items)))}, nil
}

func (s *stubProductRepo) Update(_ context.Context, productID string, updates map[string]any) error {
	product, ok := s.byProductID[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range updates {
		switch key {
		case "name":
			product.Name = value.(string)
		case "stock":
			product.Stock = value.(int)
		case "price":
			product.Price = value.(decimal.Decimal)
		}
	}
	return nil
}

func (s *stubProductRepo) Delete(_ context.Context, productID string) error {
	delete(s.byProductID, productID)
	return nil
}

func (s *stubProductRepo) NextProductID(_ context.Context) (string, error) {
	s.seq++
	return fmt.Sprintf("PRD-%03d", s.seq), nil
}

func (s *stubProductRepo) AdjustStock(_ context.Context, productID string, delta int) error {
	product, ok := s.byProductID[productID]
	if !ok || product.Stock+delta < 0 {
		return gorm.ErrRecordNotFound
	}
	product.Stock += delta
	return nil
}

type stubReviewRepo struct {
	reviews []models.Review
}

func (s *stubReviewRepo) WithTx(tx *gorm.DB) ReviewRepository { return s }

func (s *stubReviewRepo) Create(_ context.Context, review *models.Review) error {
	s.reviews = append(s.reviews, *review)
	return nil
}

func (s *stubReviewRepo) ListByProduct(_ context.Context, productID string, limit int) ([]models.Review, error) {
	var out []models.Review
	for _, review := range s.reviews {
		if review.ProductID == productID {
			out = append(out, review)
		}
	}
	return out, nil
}

func (s *stubReviewRepo) ExistsForOrderProducts(_ context.Context, userID uuid.UUID, productIDs []string) (bool, error) {
	for _, review := range s.reviews {
		if review.UserID != userID {
			continue
		}
		for _, productID := range productIDs {
			if review.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *stubReviewRepo) Summary(_ context.Context, productID string) (*RatingSummary, error) {
	var sum, count int64
	for _, review := range s.reviews {
		if review.ProductID == productID {
			sum += int64(review.Rating)
			count++
		}
	}
	summary := &RatingSummary{Count: count}
	if count > 0 {
		summary.Average = float64(sum) / float64(count)
	}
	return summary, nil
}

type stubOrderRepo struct {
	orders map[uint]*models.Order
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
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) List(_ context.Context, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrderRepo) Update(_ context.Context, id uint, updates map[string]any) error {
	return nil
}

type productsFixture struct {
	svc     Service
	repo    *stubProductRepo
	reviews *stubReviewRepo
	orders  *stubOrderRepo
	userID  uuid.UUID
}

func newProductsFixture(t *testing.T) *productsFixture {
	t.Helper()
	repo := newStubProductRepo()
	reviews := &stubReviewRepo{}
	orderRepo := &stubOrderRepo{orders: map[uint]*models.Order{}}
	logg := logger.New(logger.Options{ServiceName: "products-test", Level: zerolog.ErrorLevel, Output: io.Discard})

	svc, err := NewService(repo, reviews, orderRepo, stubTx{}, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &productsFixture{svc: svc, repo: repo, reviews: reviews, orders: orderRepo, userID: uuid.New()}
}

func (f *productsFixture) seedDeliveredOrder(id uint) *models.Order {
	order := &models.Order{
		ID:          id,
		OrderNumber: fmt.Sprintf("MAP-%08d", id),
		UserID:      f.userID,
		Items: types.OrderItems{
			{ProductID: "PRD-001", Name: "Trail Map", Qty: 1, UnitPrice: decimal.RequireFromString("250.00")},
			{ProductID: "PRD-002", Name: "Compass", Qty: 2, UnitPrice: decimal.RequireFromString("449.25")},
		},
		TotalAmount: decimal.RequireFromString("1148.50"),
		OrderStatus: enums.OrderStatusDelivered,
	}
	f.orders.orders[id] = order
	return order
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	f := newProductsFixture(t)

	first, err := f.svc.Create(context.Background(), CreateInput{Name: "Trail Map", Price: decimal.RequireFromString("250.00"), Stock: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.svc.Create(context.Background(), CreateInput{Name: "Compass", Price: decimal.RequireFromString("449.25"), Stock: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if first.ProductID != "PRD-001" || second.ProductID != "PRD-002" {
		t.Fatalf("ids = %s, %s; want PRD-001, PRD-002", first.ProductID, second.ProductID)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newProductsFixture(t)

	cases := []CreateInput{
		{Name: "", Price: decimal.RequireFromString("10.00")},
		{Name: "Trail Map", Price: decimal.Zero},
		{Name: "Trail Map", Price: decimal.RequireFromString("10.00"), Stock: -1},
	}
	for i, input := range cases {
		if _, err := f.svc.Create(context.Background(), input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: err = %v, want validation", i, err)
		}
	}
}

func TestGetReturnsRatingSummary(t *testing.T) {
	f := newProductsFixture(t)
	if _, err := f.svc.Create(context.Background(), CreateInput{Name: "Trail Map", Price: decimal.RequireFromString("250.00")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.reviews.reviews = []models.Review{
		{ProductID: "PRD-001", Rating: 5},
		{ProductID: "PRD-001", Rating: 3},
	}

	detail, err := f.svc.Get(context.Background(), "PRD-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Rating.Count != 2 || detail.Rating.Average != 4.0 {
		t.Fatalf("rating = %+v, want count 2 average 4.0", detail.Rating)
	}
	if len(detail.Reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(detail.Reviews))
	}
}

func TestRateOrderWritesVerifiedReviews(t *testing.T) {
	f := newProductsFixture(t)
	f.seedDeliveredOrder(21)

	created, err := f.svc.RateOrder(context.Background(), RateOrderInput{
		OrderID:  21,
		UserID:   f.userID,
		Username: "trailblazer",
		Rating:   5,
		Comment:  "arrived fast",
	})
	if err != nil {
		t.Fatalf("rate order: %v", err)
	}

	if len(created) != 2 {
		t.Fatalf("created %d reviews, want one per product", len(created))
	}
	for _, review := range created {
		if !review.Verified {
			t.Fatalf("review for %s not marked verified", review.ProductID)
		}
		if review.Rating != 5 {
			t.Fatalf("review rating = %d, want 5", review.Rating)
		}
	}
}

func TestRateOrderRejectsUndelivered(t *testing.T) {
	f := newProductsFixture(t)
	order := f.seedDeliveredOrder(22)
	order.OrderStatus = enums.OrderStatusShipped

	_, err := f.svc.RateOrder(context.Background(), RateOrderInput{OrderID: 22, UserID: f.userID, Rating: 4})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestRateOrderRejectsForeignOrder(t *testing.T) {
	f := newProductsFixture(t)
	f.seedDeliveredOrder(23)

	_, err := f.svc.RateOrder(context.Background(), RateOrderInput{OrderID: 23, UserID: uuid.New(), Rating: 4})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestRateOrderRejectsDuplicate(t *testing.T) {
	f := newProductsFixture(t)
	f.seedDeliveredOrder(24)

	input := RateOrderInput{OrderID: 24, UserID: f.userID, Rating: 4}
	if _, err := f.svc.RateOrder(context.Background(), input); err != nil {
		t.Fatalf("first rate: %v", err)
	}

	_, err := f.svc.RateOrder(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestRateOrderValidatesRatingRange(t *testing.T) {
	f := newProductsFixture(t)
	f.seedDeliveredOrder(25)

	for _, rating := range []int{0, 6, -1} {
		_, err := f.svc.RateOrder(context.Background(), RateOrderInput{OrderID: 25, UserID: f.userID, Rating: rating})
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("rating %d: err = %v, want validation", rating, err)
		}
	}
}
