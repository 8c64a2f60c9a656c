package cart

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

type stubCartRepo struct {
	items map[string]*models.CartItem
}

func cartKey(userID uuid.UUID, productID string) string {
	return userID.String() + "/" + productID
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{items: map[string]*models.CartItem{}}
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCartRepo) Upsert(_ context.Context, item *models.CartItem) error {
	key := cartKey(item.UserID, item.ProductID)
	if existing, ok := s.items[key]; ok {
		existing.Qty += item.Qty
		return nil
	}
	s.items[key] = item
	return nil
}

func (s *stubCartRepo) Find(_ context.Context, userID uuid.UUID, productID string) (*models.CartItem, error) {
	item, ok := s.items[cartKey(userID, productID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *stubCartRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubCartRepo) UpdateQty(_ context.Context, userID uuid.UUID, productID string, qty int) error {
	item, ok := s.items[cartKey(userID, productID)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	item.Qty = qty
	return nil
}

func (s *stubCartRepo) Remove(_ context.Context, userID uuid.UUID, productID string) error {
	key := cartKey(userID, productID)
	if _, ok := s.items[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.items, key)
	return nil
}

func (s *stubCartRepo) Clear(_ context.Context, userID uuid.UUID) error {
	for key, item := range s.items {
		if item.UserID == userID {
			delete(s.items, key)
		}
	}
	return nil
}

type stubCatalog struct {
	byProductID map[string]*models.Product
}

func (s *stubCatalog) WithTx(tx *gorm.DB) products.Repository { return s }

func (s *stubCatalog) Create(_ context.Context, product *models.Product) error {
	s.byProductID[product.ProductID] = product
	return nil
}

func (s *stubCatalog) FindByProductID(_ context.Context, productID string) (*models.Product, error) {
	product, ok := s.byProductID[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *product
	return &clone, nil
}

func (s *stubCatalog) FindByProductIDForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	return s.FindByProductID(ctx, productID)
}

func (s *stubCatalog) List(_ context.Context, input products.ListInput) (*products.ProductList, error) {
	return &products.ProductList{Meta: pagination.MetaFor(input.Params.Normalize(), 0)}, nil
}

func (s *stubCatalog) Update(_ context.Context, productID string, updates map[string]any) error {
	return nil
}

func (s *stubCatalog) Delete(_ context.Context, productID string) error {
	delete(s.byProductID, productID)
	return nil
}

func (s *stubCatalog) NextProductID(_ context.Context) (string, error) {
	return "PRD-001", nil
}

func (s *stubCatalog) AdjustStock(_ context.Context, productID string, delta int) error {
	return nil
}

type cartFixture struct {
	svc     Service
	repo    *stubCartRepo
	catalog *stubCatalog
	userID  uuid.UUID
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	repo := newStubCartRepo()
	catalog := &stubCatalog{byProductID: map[string]*models.Product{
		"PRD-001": {ProductID: "PRD-001", Name: "Trail Map", Price: decimal.RequireFromString("250.00"), Stock: 10},
		"PRD-002": {ProductID: "PRD-002", Name: "Compass", Price: decimal.RequireFromString("449.25"), Stock: 2},
	}}
	logg := logger.New(logger.Options{ServiceName: "cart-test", Level: zerolog.ErrorLevel, Output: io.Discard})

	svc, err := NewService(repo, catalog, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &cartFixture{svc: svc, repo: repo, catalog: catalog, userID: uuid.New()}
}

func TestAddAndListComputesLineTotals(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, "PRD-001", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.Add(ctx, f.userID, "PRD-002", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := f.svc.List(ctx, f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(view.Items))
	}
	if want := decimal.RequireFromString("949.25"); !view.Total.Equal(want) {
		t.Fatalf("total = %s, want %s", view.Total, want)
	}
}

func TestAddAccumulatesQty(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, "PRD-001", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.Add(ctx, f.userID, "PRD-001", 3); err != nil {
		t.Fatalf("add again: %v", err)
	}

	item, err := f.repo.Find(ctx, f.userID, "PRD-001")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if item.Qty != 5 {
		t.Fatalf("qty = %d, want 5", item.Qty)
	}
}

func TestAddRejectsInsufficientStock(t *testing.T) {
	f := newCartFixture(t)

	err := f.svc.Add(context.Background(), f.userID, "PRD-002", 5)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	f := newCartFixture(t)

	err := f.svc.Add(context.Background(), f.userID, "PRD-404", 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateQtyZeroRemoves(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, "PRD-001", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.svc.UpdateQty(ctx, f.userID, "PRD-001", 0); err != nil {
		t.Fatalf("update qty: %v", err)
	}

	if _, err := f.repo.Find(ctx, f.userID, "PRD-001"); err != gorm.ErrRecordNotFound {
		t.Fatalf("item still present after zero qty update")
	}
}

func TestListDropsStaleRows(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	if err := f.svc.Add(ctx, f.userID, "PRD-001", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	delete(f.catalog.byProductID, "PRD-001")

	view, err := f.svc.List(ctx, f.userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("stale item still listed")
	}
	if _, err := f.repo.Find(ctx, f.userID, "PRD-001"); err != gorm.ErrRecordNotFound {
		t.Fatalf("stale row not removed")
	}
}
