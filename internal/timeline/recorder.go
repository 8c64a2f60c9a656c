package timeline

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// DefaultActor is recorded when no explicit actor is supplied.
const DefaultActor = "system"

// Entry is the caller-facing shape of one audit record.
type Entry struct {
	OrderID     uint
	Status      string
	Description string
	Location    *string
	UpdatedBy   string
	Metadata    types.JSONMap
}

// Recorder appends immutable audit entries to an order's timeline. It exposes
// no update or delete path on purpose.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	History(ctx context.Context, orderID uint) ([]models.OrderTimelineEntry, error)
}

type recorder struct {
	repo Repository
}

// NewRecorder builds a timeline recorder over the provided repository.
func NewRecorder(repo Repository) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("timeline repository required")
	}
	return &recorder{repo: repo}, nil
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.OrderID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if entry.Status == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "timeline status required")
	}

	actor := entry.UpdatedBy
	if actor == "" {
		actor = DefaultActor
	}

	row := models.OrderTimelineEntry{
		OrderID:     entry.OrderID,
		Status:      entry.Status,
		Description: entry.Description,
		Location:    entry.Location,
		UpdatedBy:   actor,
		Metadata:    entry.Metadata,
	}

	repo := r.repo.WithTx(tx)
	if err := repo.Append(ctx, &row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline entry")
	}
	return nil
}

func (r *recorder) History(ctx context.Context, orderID uint) ([]models.OrderTimelineEntry, error) {
	if orderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := r.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list timeline entries")
	}
	return entries, nil
}
