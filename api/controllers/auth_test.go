package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

type capturingUserService struct {
	signup *users.SignupInput
	login  *users.LoginInput
	result *users.AuthResult
	user   *models.User
	err    error
}

func (s *capturingUserService) Signup(_ context.Context, input users.SignupInput) (*users.AuthResult, error) {
	s.signup = &input
	return s.result, s.err
}

func (s *capturingUserService) Login(_ context.Context, input users.LoginInput) (*users.AuthResult, error) {
	s.login = &input
	return s.result, s.err
}

func (s *capturingUserService) Get(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

func (s *capturingUserService) MarkEmailVerified(_ context.Context, _ string) error {
	return s.err
}

func TestSignupReturnsSession(t *testing.T) {
	svc := &capturingUserService{result: &users.AuthResult{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	handler := Signup(svc, nil)

	body := `{"email":"buyer@example.com","username":"buyer","password":"hunter2hunter2"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/signup", body))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.signup == nil || svc.signup.Email != "buyer@example.com" {
		t.Fatalf("signup input = %+v", svc.signup)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	handler := Signup(&capturingUserService{}, nil)

	body := `{"email":"buyer@example.com","username":"buyer","password":"short"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/signup", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestLoginForwardsClientIP(t *testing.T) {
	svc := &capturingUserService{result: &users.AuthResult{AccessToken: "token"}}
	handler := Login(svc, nil)

	req := postJSON("/api/login", `{"email":"buyer@example.com","password":"hunter2hunter2"}`)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.login == nil || svc.login.ClientIP != "203.0.113.9" {
		t.Fatalf("login input = %+v", svc.login)
	}
}

func TestLoginUnauthorizedHidesDetail(t *testing.T) {
	svc := &capturingUserService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	handler := Login(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, postJSON("/api/login", `{"email":"buyer@example.com","password":"wrongwrong"}`))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestProfileUsesContextUser(t *testing.T) {
	userID := uuid.New()
	svc := &capturingUserService{user: &models.User{ID: userID, Email: "buyer@example.com"}}
	handler := Profile(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), userID, "buyer@example.com", "customer"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
