package dto

// ClientInfo is filled from the HTTP request by handlers and stored in audit logs.
type ClientInfo struct {
	IP        string `json:"-" form:"-"`
	UserAgent string `json:"-" form:"-"`
}

// SignupRequest is accepted as JSON or multipart form fields.
type SignupRequest struct {
	Name         string `json:"name" form:"name" validate:"required,notblank"`
	Email        string `json:"email" form:"email" validate:"required,email"`
	MobileNumber string `json:"mobileNumber" form:"mobileNumber" validate:"required,mobile"`
	Password     string `json:"password" form:"password" validate:"required,min=6"`
	Role         string `json:"role" form:"role" validate:"required,oneof=teacher admin"`
	TeacherID    string `json:"teacherId,omitempty" form:"teacherId" validate:"required_if=Role teacher"`
	Department   string `json:"department,omitempty" form:"department" validate:"required_if=Role teacher,omitempty,department"`
	ClientInfo
}

// EmailPasswordLoginRequest is the payload of POST /login/email-password.
type EmailPasswordLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientInfo
}

// MobilePasswordLoginRequest is the payload of POST /login/number-password.
type MobilePasswordLoginRequest struct {
	MobileNumber string `json:"mobileNumber" validate:"required"`
	Password     string `json:"password" validate:"required"`
	ClientInfo
}

// SendOTPRequest asks for a one-time passcode by email.
type SendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// EmailOTPLoginRequest exchanges an OTP for a token.
type EmailOTPLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
	ClientInfo
}

// UpdateProfileRequest carries a partial profile update; empty fields are left unchanged.
type UpdateProfileRequest struct {
	Name         string `json:"name,omitempty" form:"name" validate:"omitempty,notblank"`
	Email        string `json:"email,omitempty" form:"email" validate:"omitempty,email"`
	MobileNumber string `json:"mobileNumber,omitempty" form:"mobileNumber" validate:"omitempty,mobile"`
	Password     string `json:"password,omitempty" form:"password" validate:"omitempty,min=6"`
	TeacherID    string `json:"teacherId,omitempty" form:"teacherId"`
	Department   string `json:"department,omitempty" form:"department" validate:"omitempty,department"`
	ClientInfo
}

// ResetPasswordRequest completes the OTP password change flow.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
	ClientInfo
}
