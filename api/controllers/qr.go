package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/api/responses"
	"github.com/mapmarket/mapmarket-backend/api/validators"
	"github.com/mapmarket/mapmarket-backend/internal/qrpayments"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type generateQRRequest struct {
	OrderID uint `json:"order_id" validate:"required,min=1"`
}

type verifyQRRequest struct {
	TransactionID  string `json:"transaction_id" validate:"required,max=100"`
	TransactionRef string `json:"transaction_ref" validate:"omitempty,max=100"`
}

// GenerateQR opens a UPI payment session for an order.
func GenerateQR(svc qrpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qr payment service unavailable"))
			return
		}

		var body generateQRRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Create(r.Context(), qrpayments.CreateInput{
			OrderID: body.OrderID,
			UserID:  middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// QRStatus reports the current session state, expiring it lazily if due.
func QRStatus(svc qrpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qr payment service unavailable"))
			return
		}

		session, err := svc.Status(r.Context(), chi.URLParam(r, "qrId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}

// VerifyQR settles a pending session with the customer's UPI transaction.
func VerifyQR(svc qrpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qr payment service unavailable"))
			return
		}

		var body verifyQRRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Verify(r.Context(), qrpayments.VerifyInput{
			QRID:           chi.URLParam(r, "qrId"),
			UserID:         middleware.UserIDFromContext(r.Context()),
			TransactionID:  body.TransactionID,
			TransactionRef: body.TransactionRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}

// QRImage streams the rendered QR code for an active session.
func QRImage(svc qrpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qr payment service unavailable"))
			return
		}

		image, err := svc.Image(r.Context(), chi.URLParam(r, "qrId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(image)
	}
}
