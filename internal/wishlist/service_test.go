package wishlist

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

type stubWishlistRepo struct {
	items map[string]*models.WishlistItem
}

func wishKey(userID uuid.UUID, productID string) string {
	return userID.String() + "/" + productID
}

func (s *stubWishlistRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubWishlistRepo) Add(_ context.Context, item *models.WishlistItem) error {
	s.items[wishKey(item.UserID, item.ProductID)] = item
	return nil
}

func (s *stubWishlistRepo) Exists(_ context.Context, userID uuid.UUID, productID string) (bool, error) {
	_, ok := s.items[wishKey(userID, productID)]
	return ok, nil
}

func (s *stubWishlistRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *stubWishlistRepo) Remove(_ context.Context, userID uuid.UUID, productID string) error {
	key := wishKey(userID, productID)
	if _, ok := s.items[key]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.items, key)
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

func newWishlistFixture(t *testing.T) (Service, *stubWishlistRepo, *stubCatalog, uuid.UUID) {
	t.Helper()
	repo := &stubWishlistRepo{items: map[string]*models.WishlistItem{}}
	catalog := &stubCatalog{byProductID: map[string]*models.Product{
		"PRD-001": {ProductID: "PRD-001", Name: "Trail Map", Price: decimal.RequireFromString("250.00"), Stock: 10},
	}}
	logg := logger.New(logger.Options{ServiceName: "wishlist-test", Level: zerolog.ErrorLevel, Output: io.Discard})

	svc, err := NewService(repo, catalog, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, catalog, uuid.New()
}

func TestAddAndList(t *testing.T) {
	svc, _, _, userID := newWishlistFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, userID, "PRD-001"); err != nil {
		t.Fatalf("add: %v", err)
	}

	view, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].ProductID != "PRD-001" {
		t.Fatalf("view = %+v", view)
	}
}

func TestAddDuplicateConflicts(t *testing.T) {
	svc, _, _, userID := newWishlistFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, userID, "PRD-001"); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := svc.Add(ctx, userID, "PRD-001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	svc, _, _, userID := newWishlistFixture(t)

	err := svc.Add(context.Background(), userID, "PRD-404")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRemoveMissingItem(t *testing.T) {
	svc, _, _, userID := newWishlistFixture(t)

	err := svc.Remove(context.Background(), userID, "PRD-001")
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListSkipsRemovedProducts(t *testing.T) {
	svc, _, catalog, userID := newWishlistFixture(t)
	ctx := context.Background()

	if err := svc.Add(ctx, userID, "PRD-001"); err != nil {
		t.Fatalf("add: %v", err)
	}
	delete(catalog.byProductID, "PRD-001")

	view, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("removed product still listed")
	}
}
