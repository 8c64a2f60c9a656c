package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/api/responses"
	"github.com/mapmarket/mapmarket-backend/api/validators"
	"github.com/mapmarket/mapmarket-backend/internal/billing"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type saveBillingRequest struct {
	FirstName     string `json:"first_name" validate:"omitempty,max=100"`
	LastName      string `json:"last_name" validate:"omitempty,max=100"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"omitempty,max=20"`
	StreetAddress string `json:"street_address" validate:"required,max=255"`
	City          string `json:"city" validate:"required,max=100"`
	State         string `json:"state" validate:"omitempty,max=100"`
	ZipCode       string `json:"zip_code" validate:"omitempty,max=20"`
	Country       string `json:"country" validate:"omitempty,max=100"`
	IsPrimary     bool   `json:"is_primary"`
}

func (b saveBillingRequest) toInput() billing.SaveInput {
	return billing.SaveInput{
		FirstName:     b.FirstName,
		LastName:      b.LastName,
		Email:         b.Email,
		Phone:         b.Phone,
		StreetAddress: b.StreetAddress,
		City:          b.City,
		State:         b.State,
		ZipCode:       b.ZipCode,
		Country:       b.Country,
		IsPrimary:     b.IsPrimary,
	}
}

func parseUintParam(r *http.Request, key string) (uint, error) {
	raw := chi.URLParam(r, key)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"param": key})
	}
	return uint(value), nil
}

// CreateBilling saves a billing address for the authenticated user.
func CreateBilling(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var body saveBillingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.Create(r.Context(), middleware.UserIDFromContext(r.Context()), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, info)
	}
}

// UpdateBilling mutates one of the user's saved addresses.
func UpdateBilling(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		billingID, err := parseUintParam(r, "billingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body saveBillingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.Update(r.Context(), middleware.UserIDFromContext(r.Context()), billingID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, info)
	}
}

// ListBilling returns every saved address, primary first.
func ListBilling(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		infos, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, infos)
	}
}

// DeleteBilling removes one of the user's saved addresses.
func DeleteBilling(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		billingID, err := parseUintParam(r, "billingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), middleware.UserIDFromContext(r.Context()), billingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
