package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mapmarket/mapmarket-backend/internal/otp"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

type stubOTPService struct {
	created  *otp.CreateInput
	verified *otp.VerifyInput
	err      error
}

func (s *stubOTPService) Create(_ context.Context, input otp.CreateInput) error {
	s.created = &input
	return s.err
}

func (s *stubOTPService) Verify(_ context.Context, input otp.VerifyInput) error {
	s.verified = &input
	return s.err
}

type stubUserService struct {
	verifiedEmail string
}

func (s *stubUserService) Signup(_ context.Context, _ users.SignupInput) (*users.AuthResult, error) {
	return nil, nil
}

func (s *stubUserService) Login(_ context.Context, _ users.LoginInput) (*users.AuthResult, error) {
	return nil, nil
}

func (s *stubUserService) Get(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, nil
}

func (s *stubUserService) MarkEmailVerified(_ context.Context, email string) error {
	s.verifiedEmail = email
	return nil
}

func postJSON(target, body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
}

func TestSendOTPPassesPurpose(t *testing.T) {
	svc := &stubOTPService{}
	handler := SendOTP(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/send-otp", `{"email":"buyer@example.com","purpose":"registration"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || svc.created.Purpose != enums.OTPPurposeRegistration || svc.created.Resend {
		t.Fatalf("create input = %+v", svc.created)
	}
}

func TestResendOTPSetsResendFlag(t *testing.T) {
	svc := &stubOTPService{}
	handler := ResendOTP(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/resend-otp", `{"email":"buyer@example.com","purpose":"registration"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.created == nil || !svc.created.Resend {
		t.Fatalf("resend flag not set: %+v", svc.created)
	}
}

func TestSendOTPRejectsUnknownPurpose(t *testing.T) {
	handler := SendOTP(&stubOTPService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/send-otp", `{"email":"buyer@example.com","purpose":"mystery"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestVerifyRegistrationOTPMarksEmail(t *testing.T) {
	svc := &stubOTPService{}
	accounts := &stubUserService{}
	handler := VerifyOTP(svc, accounts, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/verify-otp", `{"email":"buyer@example.com","purpose":"registration","code":"123456"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if accounts.verifiedEmail != "buyer@example.com" {
		t.Fatalf("email not marked verified: %q", accounts.verifiedEmail)
	}
}

func TestVerifyOTPMismatchDoesNotMarkEmail(t *testing.T) {
	svc := &stubOTPService{err: pkgerrors.New(pkgerrors.CodeOTPMismatch, "invalid otp")}
	accounts := &stubUserService{}
	handler := VerifyOTP(svc, accounts, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/verify-otp", `{"email":"buyer@example.com","purpose":"registration","code":"000000"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if accounts.verifiedEmail != "" {
		t.Fatalf("email marked verified despite mismatch")
	}
}

func TestVerifyExpiredOTPReturnsGone(t *testing.T) {
	svc := &stubOTPService{err: pkgerrors.New(pkgerrors.CodeExpired, "otp expired")}
	handler := VerifyOTP(svc, &stubUserService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/email/verify-otp", `{"email":"buyer@example.com","purpose":"registration","code":"123456"}`))

	if resp.Code != http.StatusGone {
		t.Fatalf("expected 410 got %d", resp.Code)
	}
}
