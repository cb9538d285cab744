package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/mailer"
)

type otpRepository interface {
	Upsert(ctx context.Context, otp *models.OTP) error
	FindByEmail(ctx context.Context, email string) (*models.OTP, error)
	Delete(ctx context.Context, email string) error
}

var (
	errOTPMissing  = errors.New("otp not found")
	errOTPExpired  = errors.New("otp expired")
	errOTPMismatch = errors.New("otp mismatch")
)

// OTPConfig sets code lifetimes per purpose.
type OTPConfig struct {
	LoginTTL time.Duration
	ResetTTL time.Duration
}

// OTPService issues and checks six digit one-time passcodes. Each email holds one
// code at a time; expiry is checked only when a code is presented.
type OTPService struct {
	repo    otpRepository
	mailer  mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
	config  OTPConfig
	now     func() time.Time
}

// NewOTPService constructs an OTP service.
func NewOTPService(repo otpRepository, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger, cfg OTPConfig) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LoginTTL <= 0 {
		cfg.LoginTTL = 5 * time.Minute
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	return &OTPService{repo: repo, mailer: m, metrics: metrics, logger: logger, config: cfg, now: time.Now}
}

// Issue stores a fresh code for email, replacing any previous one, and mails it.
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.OTPPurpose) error {
	code, err := generateOTP()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate OTP")
	}
	ttl := s.ttl(purpose)
	now := s.now().UTC()
	record := &models.OTP{Email: email, Purpose: purpose, Code: code, ExpiresAt: now.Add(ttl), CreatedAt: now}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store OTP")
	}
	s.metrics.RecordOTPIssued(string(purpose))

	err = s.mailer.Send(ctx, mailer.Message{
		To:      email,
		Subject: "Your OTP Code",
		HTML:    fmt.Sprintf("<p>Your OTP code is: <b>%s</b></p><p>It is valid for %d minutes.</p>", code, int(ttl.Minutes())),
	})
	s.metrics.RecordMail("otp_"+string(purpose), err)
	if err != nil {
		s.logger.Error("otp mail failed", zap.String("email", email), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrMailFailed.Code, appErrors.ErrMailFailed.Status, appErrors.ErrMailFailed.Message)
	}
	return nil
}

// Verify checks code against the stored record and consumes it on success.
// Expired records are deleted when found.
func (s *OTPService) Verify(ctx context.Context, email string, purpose models.OTPPurpose, code string) error {
	record, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errOTPMissing
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load OTP")
	}
	if record.Purpose != purpose {
		return errOTPMissing
	}
	if record.Expired(s.now()) {
		if err := s.repo.Delete(ctx, email); err != nil {
			s.logger.Warn("failed to delete expired otp", zap.String("email", email), zap.Error(err))
		}
		return errOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(strings.TrimSpace(code))) != 1 {
		return errOTPMismatch
	}
	if err := s.repo.Delete(ctx, email); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume OTP")
	}
	return nil
}

func (s *OTPService) ttl(purpose models.OTPPurpose) time.Duration {
	if purpose == models.OTPPurposeReset {
		return s.config.ResetTTL
	}
	return s.config.LoginTTL
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
