package products

import (
	"context"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
)

// CatalogAdapter exposes the repository as the locked-read/stock surface the
// order flow works against.
type CatalogAdapter struct {
	repo Repository
}

// NewCatalogAdapter builds the adapter.
func NewCatalogAdapter(repo Repository) *CatalogAdapter {
	return &CatalogAdapter{repo: repo}
}

var _ orders.Catalog = (*CatalogAdapter)(nil)

func (a *CatalogAdapter) FindForUpdate(ctx context.Context, tx *gorm.DB, productID string) (*models.Product, error) {
	return a.repo.WithTx(tx).FindByProductIDForUpdate(ctx, productID)
}

func (a *CatalogAdapter) AdjustStock(ctx context.Context, tx *gorm.DB, productID string, delta int) error {
	return a.repo.WithTx(tx).AdjustStock(ctx, productID, delta)
}
