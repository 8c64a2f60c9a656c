package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
	"github.com/mapmarket/mapmarket-backend/pkg/redis"
	"github.com/mapmarket/mapmarket-backend/pkg/security"
)

const (
	rateLimitScopeSend   = "otp_send"
	rateLimitScopeResend = "otp_resend"
)

// Sender delivers a one-time code to the recipient.
type Sender interface {
	SendEmailOTP(ctx context.Context, email string, purpose enums.OTPPurpose, code string, ttl time.Duration) error
}

// CreateInput requests a fresh code for an email and purpose. Resend marks
// the request as a re-issue, which runs under a tighter rate limit.
type CreateInput struct {
	Email   string
	Purpose enums.OTPPurpose
	Resend  bool
}

// VerifyInput checks a submitted code.
type VerifyInput struct {
	Email   string
	Purpose enums.OTPPurpose
	Code    string
}

// Service issues and verifies email one-time codes. Issuing a new code
// invalidates every earlier unverified code for the same email and purpose,
// and each code permanently stops verifying once used, expired, or over the
// attempt cap.
type Service interface {
	Create(ctx context.Context, input CreateInput) error
	Verify(ctx context.Context, input VerifyInput) error
}

type service struct {
	repo    Repository
	counter redis.Counter
	sender  Sender
	cfg     config.OTPConfig
	logg    *logger.Logger
}

// NewService builds the OTP service.
func NewService(repo Repository, counter redis.Counter, sender Sender, cfg config.OTPConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	if counter == nil {
		return nil, fmt.Errorf("rate limit counter required")
	}
	if sender == nil {
		return nil, fmt.Errorf("otp sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, counter: counter, sender: sender, cfg: cfg, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) error {
	email := normalizeEmail(input.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if !input.Purpose.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid otp purpose")
	}

	if err := s.checkRateLimits(ctx, email, input.Resend); err != nil {
		return err
	}

	code, err := security.GenerateNumericCode(s.codeLength())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp code")
	}

	if err := s.repo.InvalidateUnverified(ctx, email, input.Purpose); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate previous codes")
	}

	now := time.Now().UTC()
	record := &models.EmailOTP{
		Email:     email,
		Code:      code,
		Purpose:   input.Purpose,
		ExpiresAt: now.Add(s.codeTTL()),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}

	if err := s.sender.SendEmailOTP(ctx, email, input.Purpose, code, s.codeTTL()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send otp email")
	}

	s.logg.Info(ctx, fmt.Sprintf("otp issued for purpose %s", input.Purpose))
	return nil
}

func (s *service) Verify(ctx context.Context, input VerifyInput) error {
	email := normalizeEmail(input.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if !input.Purpose.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid otp purpose")
	}
	if input.Code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code required")
	}

	record, err := s.repo.FindLatest(ctx, email, input.Purpose)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no code was requested for this email")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	// every verify against a stored code counts toward the attempt cap, even
	// on the expired and already-used paths
	if err := s.repo.IncrementAttempts(ctx, record.ID); err != nil {
		s.logg.Error(ctx, "increment otp attempts", err)
	}

	now := time.Now().UTC()
	switch {
	case now.After(record.ExpiresAt):
		return pkgerrors.New(pkgerrors.CodeExpired, "code has expired")
	case record.Verified:
		return pkgerrors.New(pkgerrors.CodeOTPUsed, "code was already used")
	case record.Attempts >= s.maxAttempts():
		return pkgerrors.New(pkgerrors.CodeOTPAttempts, "too many incorrect attempts")
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(input.Code)) != 1 {
		return pkgerrors.New(pkgerrors.CodeOTPMismatch, "incorrect code")
	}

	if err := s.repo.Update(ctx, record.ID, map[string]any{
		"verified":    true,
		"verified_at": now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark otp verified")
	}

	s.logg.Info(ctx, fmt.Sprintf("otp verified for purpose %s", input.Purpose))
	return nil
}

func (s *service) checkRateLimits(ctx context.Context, email string, resend bool) error {
	sendKey := s.counter.RateLimitKey(rateLimitScopeSend, email)
	count, err := s.counter.IncrWithTTL(ctx, sendKey, s.sendWindow())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp send rate limit")
	}
	if count > int64(s.sendLimit()) {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many codes requested, try again later")
	}

	if !resend {
		return nil
	}

	resendKey := s.counter.RateLimitKey(rateLimitScopeResend, email)
	count, err = s.counter.IncrWithTTL(ctx, resendKey, s.resendWindow())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp resend rate limit")
	}
	if count > int64(s.resendLimit()) {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many resend requests, try again later")
	}
	return nil
}

func (s *service) codeLength() int {
	if s.cfg.Length > 0 {
		return s.cfg.Length
	}
	return 6
}

func (s *service) codeTTL() time.Duration {
	if s.cfg.Expiry > 0 {
		return s.cfg.Expiry
	}
	return 10 * time.Minute
}

func (s *service) maxAttempts() int {
	if s.cfg.MaxAttempts > 0 {
		return s.cfg.MaxAttempts
	}
	return 5
}

func (s *service) sendWindow() time.Duration {
	if s.cfg.SendWindow > 0 {
		return s.cfg.SendWindow
	}
	return time.Hour
}

func (s *service) sendLimit() int {
	if s.cfg.SendLimit > 0 {
		return s.cfg.SendLimit
	}
	return 5
}

func (s *service) resendWindow() time.Duration {
	if s.cfg.ResendWindow > 0 {
		return s.cfg.ResendWindow
	}
	return 30 * time.Minute
}

func (s *service) resendLimit() int {
	if s.cfg.ResendLimit > 0 {
		return s.cfg.ResendLimit
	}
	return 3
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
