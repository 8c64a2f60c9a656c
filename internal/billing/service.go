package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SaveInput is the payload to create or update a billing address.
type SaveInput struct {
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	StreetAddress string
	City          string
	State         string
	ZipCode       string
	Country       string
	IsPrimary     bool
}

// Service manages a user's saved billing addresses. At most one address per
// user carries the primary flag.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input SaveInput) (*models.BillingInfo, error)
	Update(ctx context.Context, userID uuid.UUID, id uint, input SaveInput) (*models.BillingInfo, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.BillingInfo, error)
	Delete(ctx context.Context, userID uuid.UUID, id uint) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the billing service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func validateSaveInput(input SaveInput) error {
	if strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if strings.TrimSpace(input.StreetAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "street address required")
	}
	if strings.TrimSpace(input.City) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "city required")
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input SaveInput) (*models.BillingInfo, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validateSaveInput(input); err != nil {
		return nil, err
	}

	var info *models.BillingInfo
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing info")
		}
		// the first saved address always becomes primary
		makePrimary := input.IsPrimary || len(existing) == 0
		if input.IsPrimary {
			if err := repo.ClearPrimary(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary flag")
			}
		}

		row := &models.BillingInfo{
			UserID:        userID,
			FirstName:     input.FirstName,
			LastName:      input.LastName,
			Email:         strings.TrimSpace(input.Email),
			Phone:         input.Phone,
			StreetAddress: input.StreetAddress,
			City:          input.City,
			State:         input.State,
			ZipCode:       input.ZipCode,
			Country:       input.Country,
			IsPrimary:     makePrimary,
		}
		if err := repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing info")
		}
		info = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, id uint, input SaveInput) (*models.BillingInfo, error) {
	if err := validateSaveInput(input); err != nil {
		return nil, err
	}

	var info *models.BillingInfo
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "billing info not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing info")
		}
		if existing.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "billing info does not belong to user")
		}

		if input.IsPrimary && !existing.IsPrimary {
			if err := repo.ClearPrimary(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary flag")
			}
		}

		updates := map[string]any{
			"first_name":     input.FirstName,
			"last_name":      input.LastName,
			"email":          strings.TrimSpace(input.Email),
			"phone":          input.Phone,
			"street_address": input.StreetAddress,
			"city":           input.City,
			"state":          input.State,
			"zip_code":       input.ZipCode,
			"country":        input.Country,
			"is_primary":     input.IsPrimary || existing.IsPrimary,
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update billing info")
		}

		info, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload billing info")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.BillingInfo, error) {
	infos, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing info")
	}
	return infos, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id uint) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "billing info not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing info")
	}
	if existing.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "billing info does not belong to user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete billing info")
	}
	return nil
}
