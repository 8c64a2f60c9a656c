package timeline

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

type stubRepo struct {
	appended []models.OrderTimelineEntry
	history  []models.OrderTimelineEntry
	err      error
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Append(_ context.Context, entry *models.OrderTimelineEntry) error {
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, *entry)
	return nil
}

func (s *stubRepo) ListByOrder(_ context.Context, orderID uint) ([]models.OrderTimelineEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

func TestRecordRequiresOrderAndStatus(t *testing.T) {
	repo := &stubRepo{}
	rec, err := NewRecorder(repo)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	err = rec.Record(context.Background(), nil, Entry{Status: "placed"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Errorf("expected validation error for missing order id, got %v", err)
	}

	err = rec.Record(context.Background(), nil, Entry{OrderID: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Errorf("expected validation error for missing status, got %v", err)
	}
	if len(repo.appended) != 0 {
		t.Errorf("nothing should be appended on validation failure")
	}
}

func TestRecordDefaultsActor(t *testing.T) {
	repo := &stubRepo{}
	rec, _ := NewRecorder(repo)

	if err := rec.Record(context.Background(), nil, Entry{
		OrderID:     7,
		Status:      "confirmed",
		Description: "Order confirmed",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(repo.appended) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.appended))
	}
	if got := repo.appended[0].UpdatedBy; got != DefaultActor {
		t.Errorf("UpdatedBy = %q, want %q", got, DefaultActor)
	}
}

func TestRecordKeepsExplicitActor(t *testing.T) {
	repo := &stubRepo{}
	rec, _ := NewRecorder(repo)

	if err := rec.Record(context.Background(), nil, Entry{
		OrderID:   7,
		Status:    "shipped",
		UpdatedBy: "ops@mapmarket.in",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := repo.appended[0].UpdatedBy; got != "ops@mapmarket.in" {
		t.Errorf("UpdatedBy = %q, want explicit actor", got)
	}
}

func TestHistoryValidatesOrderID(t *testing.T) {
	rec, _ := NewRecorder(&stubRepo{})
	if _, err := rec.History(context.Background(), 0); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
