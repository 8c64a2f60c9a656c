package controllers

import (
	"net/http"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/api/responses"
	"github.com/mapmarket/mapmarket-backend/api/validators"
	"github.com/mapmarket/mapmarket-backend/internal/payments"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type initiatePaymentRequest struct {
	OrderID uint `json:"order_id" validate:"required,min=1"`
}

type verifyRazorpayRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

type confirmStripeRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// CreateRazorpayOrder opens a Razorpay order for checkout.
func CreateRazorpayOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return initiatePayment(svc, logg, enums.PaymentProviderRazorpay)
}

// CreateStripeIntent opens a Stripe payment intent for checkout.
func CreateStripeIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return initiatePayment(svc, logg, enums.PaymentProviderStripe)
}

func initiatePayment(svc payments.Service, logg *logger.Logger, provider enums.PaymentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), payments.InitiateInput{
			OrderID:  body.OrderID,
			UserID:   middleware.UserIDFromContext(r.Context()),
			Provider: provider,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// VerifyRazorpayPayment settles a Razorpay checkout callback.
func VerifyRazorpayPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body verifyRazorpayRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.VerifyRazorpay(r.Context(), payments.VerifyInput{
			UserID:            middleware.UserIDFromContext(r.Context()),
			ProviderOrderID:   body.RazorpayOrderID,
			ProviderPaymentID: body.RazorpayPaymentID,
			Signature:         body.RazorpaySignature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

// ConfirmStripePayment settles a Stripe intent after client-side confirmation.
func ConfirmStripePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body confirmStripeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ConfirmStripe(r.Context(), payments.ConfirmStripeInput{
			UserID:          middleware.UserIDFromContext(r.Context()),
			PaymentIntentID: body.PaymentIntentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}
