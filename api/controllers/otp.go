package controllers

import (
	"net/http"

	"github.com/mapmarket/mapmarket-backend/api/responses"
	"github.com/mapmarket/mapmarket-backend/api/validators"
	"github.com/mapmarket/mapmarket-backend/internal/otp"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type sendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required"`
}

type verifyOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required"`
	Code    string `json:"code" validate:"required,min=4,max=10"`
}

// SendOTP issues a fresh one-time code, invalidating earlier unverified codes.
func SendOTP(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return sendOTP(svc, logg, false)
}

// ResendOTP re-issues a code under the stricter resend rate limit.
func ResendOTP(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return sendOTP(svc, logg, true)
}

func sendOTP(svc otp.Service, logg *logger.Logger, resend bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable"))
			return
		}

		var body sendOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purpose, err := enums.ParseOTPPurpose(body.Purpose)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purpose"))
			return
		}

		if err := svc.Create(r.Context(), otp.CreateInput{
			Email:   body.Email,
			Purpose: purpose,
			Resend:  resend,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}

// VerifyOTP checks a submitted code. Verifying a registration code also marks
// the account's email address as confirmed.
func VerifyOTP(svc otp.Service, accounts users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "otp service unavailable"))
			return
		}

		var body verifyOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purpose, err := enums.ParseOTPPurpose(body.Purpose)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purpose"))
			return
		}

		if err := svc.Verify(r.Context(), otp.VerifyInput{
			Email:   body.Email,
			Purpose: purpose,
			Code:    body.Code,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if purpose == enums.OTPPurposeRegistration && accounts != nil {
			if err := accounts.MarkEmailVerified(r.Context(), body.Email); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "verified"})
	}
}
