package models

import "time"

// OTPPurpose separates login codes from password reset codes.
type OTPPurpose string

const (
	OTPPurposeLogin OTPPurpose = "login"
	OTPPurposeReset OTPPurpose = "reset"
)

// OTP is a one-time passcode. Each email holds at most one code; issuing a new
// one replaces the previous code whatever its purpose.
type OTP struct {
	Email     string     `db:"email" json:"email"`
	Purpose   OTPPurpose `db:"purpose" json:"purpose"`
	Code      string     `db:"otp" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Expired reports whether the code is past its expiry at now.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
