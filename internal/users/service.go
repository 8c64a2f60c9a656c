package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/auth"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/redis"
	"github.com/mapmarket/mapmarket-backend/pkg/security"
)

const (
	// RoleCustomer and RoleAdmin are the only principal roles.
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	rateLimitScopeLoginEmail = "login_email"
	rateLimitScopeLoginIP    = "login_ip"
)

// SignupInput is the registration payload.
type SignupInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Phone     string
	Password  string
}

// LoginInput carries credentials plus the caller's address for rate limiting.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// AuthResult is the issued session.
type AuthResult struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Service handles account registration and credential login.
type Service interface {
	Signup(ctx context.Context, input SignupInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
}

type service struct {
	repo        Repository
	counter     redis.Counter
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	limitCfg    config.RateLimitConfig
	logg        *logger.Logger
}

// ServiceParams bundles the service dependencies.
type ServiceParams struct {
	Repo      Repository
	Counter   redis.Counter
	JWT       config.JWTConfig
	Password  config.PasswordConfig
	RateLimit config.RateLimitConfig
	Logger    *logger.Logger
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Counter == nil {
		return nil, fmt.Errorf("rate limit counter required")
	}
	if params.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		counter:     params.Counter,
		jwtCfg:      params.JWT,
		passwordCfg: params.Password,
		limitCfg:    params.RateLimit,
		logg:        params.Logger,
	}, nil
}

func (s *service) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing account")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     strings.TrimSpace(input.Username),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         RoleCustomer,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	result, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "account created")
	return result, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	if err := s.checkLoginRateLimits(ctx, email, input.ClientIP); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	result, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "login succeeded")
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return user, nil
}

// MarkEmailVerified flips the verification flag after a registration OTP
// verifies.
func (s *service) MarkEmailVerified(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return s.repo.Update(ctx, user.ID, map[string]any{"email_verified": true})
}

func (s *service) issueSession(user *models.User) (*AuthResult, error) {
	now := time.Now().UTC()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &AuthResult{
		User:        user,
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.Expiration()),
	}, nil
}

func (s *service) checkLoginRateLimits(ctx context.Context, email, clientIP string) error {
	window := s.limitCfg.LoginWindow
	if window <= 0 {
		window = time.Minute
	}

	emailLimit := s.limitCfg.LoginEmailLimit
	if emailLimit <= 0 {
		emailLimit = 5
	}
	count, err := s.counter.IncrWithTTL(ctx, s.counter.RateLimitKey(rateLimitScopeLoginEmail, email), window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "login rate limit")
	}
	if count > int64(emailLimit) {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later")
	}

	if clientIP == "" {
		return nil
	}
	ipLimit := s.limitCfg.LoginIPLimit
	if ipLimit <= 0 {
		ipLimit = 20
	}
	count, err = s.counter.IncrWithTTL(ctx, s.counter.RateLimitKey(rateLimitScopeLoginIP, clientIP), window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "login rate limit")
	}
	if count > int64(ipLimit) {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
