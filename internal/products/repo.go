package products

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

const productIDPrefix = "PRD-"

// Repository defines persistence operations for the product catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	FindByProductID(ctx context.Context, productID string) (*models.Product, error)
	FindByProductIDForUpdate(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context, input ListInput) (*ProductList, error)
	Update(ctx context.Context, productID string, updates map[string]any) error
	Delete(ctx context.Context, productID string) error
	NextProductID(ctx context.Context) (string, error)
	AdjustStock(ctx context.Context, productID string, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a product repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) FindByProductID(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByProductIDForUpdate(ctx context.Context, productID string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) List(ctx context.Context, input ListInput) (*ProductList, error) {
	params := input.Params.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if input.Category != "" {
		query = query.Where("category = ?", input.Category)
	}
	if input.Search != "" {
		pattern := "%" + strings.ToLower(input.Search) + "%"
		query = query.Where("LOWER(name) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Product
	err := query.
		Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return &ProductList{
		Items: items,
		Meta:  pagination.MetaFor(params, total),
	}, nil
}

func (r *repository) Update(ctx context.Context, productID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ?", productID).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.Product{}).Error
}

// NextProductID assigns the next sequential PRD-NNN identity. Callers run it
// inside the creation transaction so concurrent creates serialize on the
// latest row lock.
func (r *repository) NextProductID(ctx context.Context) (string, error) {
	var last models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id DESC").
		First(&last).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fmt.Sprintf("%s%03d", productIDPrefix, 1), nil
		}
		return "", err
	}

	seq := 0
	if raw, ok := strings.CutPrefix(last.ProductID, productIDPrefix); ok {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			seq = parsed
		}
	}
	return fmt.Sprintf("%s%03d", productIDPrefix, seq+1), nil
}

// AdjustStock applies a delta guarded against going negative. A zero row
// count means either the product is missing or stock would underflow.
func (r *repository) AdjustStock(ctx context.Context, productID string, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("product_id = ? AND stock + ? >= 0", productID, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
