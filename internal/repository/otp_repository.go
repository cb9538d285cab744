package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
)

// OTPRepository stores one-time passcodes keyed by email.
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository creates a new instance of OTPRepository.
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Upsert replaces any code already issued to the email.
func (r *OTPRepository) Upsert(ctx context.Context, otp *models.OTP) error {
	if otp.CreatedAt.IsZero() {
		otp.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO otps (email, purpose, otp, expires_at, created_at) VALUES (:email, :purpose, :otp, :expires_at, :created_at)
ON CONFLICT (email) DO UPDATE SET purpose = EXCLUDED.purpose, otp = EXCLUDED.otp, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, otp); err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

// FindByEmail returns the active code for email or sql.ErrNoRows.
func (r *OTPRepository) FindByEmail(ctx context.Context, email string) (*models.OTP, error) {
	const query = `SELECT email, purpose, otp, expires_at, created_at FROM otps WHERE email = $1 LIMIT 1`
	var otp models.OTP
	if err := r.db.GetContext(ctx, &otp, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find otp: %w", err)
	}
	return &otp, nil
}

// Delete removes the code for email.
func (r *OTPRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
