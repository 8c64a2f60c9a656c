package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  billing_info_id INTEGER,
  items TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  payment_method TEXT,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_reference TEXT,
  order_status TEXT NOT NULL DEFAULT 'placed',
  delivery_partner TEXT,
  tracking_number TEXT,
  estimated_delivery DATETIME,
  delivery_otp TEXT,
  order_date DATETIME,
  confirmed_at DATETIME,
  shipped_at DATETIME,
  out_for_delivery_at DATETIME,
  delivered_at DATETIME,
  cancel_reason TEXT,
  cancelled_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec("DELETE FROM orders").Error)
	return db
}

func seedOrder(t *testing.T, repo Repository, userID uuid.UUID, number string, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber: number,
		UserID:      userID,
		Items: types.OrderItems{
			{ProductID: "PRD-001", Name: "Trail Map", Qty: 1, UnitPrice: decimal.RequireFromString("250.00")},
		},
		TotalAmount:   decimal.RequireFromString("250.00"),
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		PaymentStatus: enums.PaymentStatusPending,
		OrderStatus:   status,
	}
	created, err := repo.Create(context.Background(), order)
	require.NoError(t, err)
	return created
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	userID := uuid.New()

	created := seedOrder(t, repo, userID, "MAP-AAAA0001", enums.OrderStatusPlaced)
	require.NotZero(t, created.ID)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "MAP-AAAA0001", found.OrderNumber)
	assert.Equal(t, userID, found.UserID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "PRD-001", found.Items[0].ProductID)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("250.00")))

	byNumber, err := repo.FindByOrderNumber(context.Background(), "MAP-AAAA0001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	_, err = repo.FindByOrderNumber(context.Background(), "MAP-MISSING1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	alice := uuid.New()
	bob := uuid.New()
	seedOrder(t, repo, alice, "MAP-LIST0001", enums.OrderStatusPlaced)
	seedOrder(t, repo, alice, "MAP-LIST0002", enums.OrderStatusDelivered)
	seedOrder(t, repo, bob, "MAP-LIST0003", enums.OrderStatusPlaced)

	all, err := repo.List(context.Background(), pagination.Params{}, ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Meta.Total)

	mine, err := repo.List(context.Background(), pagination.Params{}, ListFilters{UserID: &alice})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Meta.Total)

	delivered := enums.OrderStatusDelivered
	done, err := repo.List(context.Background(), pagination.Params{}, ListFilters{UserID: &alice, Status: &delivered})
	require.NoError(t, err)
	require.Len(t, done.Orders, 1)
	assert.Equal(t, "MAP-LIST0002", done.Orders[0].OrderNumber)
}

func TestRepositoryUpdate(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	created := seedOrder(t, repo, uuid.New(), "MAP-UPD00001", enums.OrderStatusPlaced)

	err := repo.Update(context.Background(), created.ID, map[string]any{
		"order_status": enums.OrderStatusConfirmed,
		"delivery_otp": "4321",
	})
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, found.OrderStatus)
	require.NotNil(t, found.DeliveryOTP)
	assert.Equal(t, "4321", *found.DeliveryOTP)

	// clearing the otp writes NULL
	require.NoError(t, repo.Update(context.Background(), created.ID, map[string]any{"delivery_otp": nil}))
	found, err = repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Nil(t, found.DeliveryOTP)
}
