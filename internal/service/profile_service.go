package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/repository"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/imagehost"
)

type profileUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindConflict(ctx context.Context, email, mobile, excludeID string) (*models.User, error)
	TeacherIDTaken(ctx context.Context, teacherID, excludeID string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, updatedAt time.Time) error
}

// ProfileService manages the signed-in user's account and password resets.
type ProfileService struct {
	repo      profileUserRepository
	audit     auditRecorder
	otps      *OTPService
	images    imagehost.Host
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a profile service.
func NewProfileService(repo profileUserRepository, audit auditRecorder, otps *OTPService, images imagehost.Host, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &ProfileService{repo: repo, audit: audit, otps: otps, images: images, validator: validate, logger: logger}
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, claims *models.JWTClaims) (*models.UserProfile, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, profileLookupError(err)
	}
	profile := user.Profile()
	return &profile, nil
}

// Update applies the non-empty fields of req. Teachers must keep a teacher id
// and department; a new image replaces the stored one.
func (s *ProfileService) Update(ctx context.Context, claims *models.JWTClaims, req dto.UpdateProfileRequest, image *ImageUpload) (*models.UserProfile, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Email = normalizeEmail(req.Email)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, profileLookupError(err)
	}

	if req.Email != "" || req.MobileNumber != "" {
		if err := checkConflict(ctx, s.repo, orDefault(req.Email, user.Email), orDefault(req.MobileNumber, user.MobileNumber), user.ID); err != nil {
			return nil, err
		}
	}

	if user.Role == models.RoleTeacher {
		teacherID := orDefault(req.TeacherID, deref(user.TeacherID))
		department := orDefault(req.Department, deref(user.Department))
		if teacherID == "" || department == "" {
			return nil, appErrors.Validation([]appErrors.FieldError{{Field: "teacherId", Message: "teacher id and department are required for teachers"}})
		}
		if req.TeacherID != "" {
			if err := checkTeacherID(ctx, s.repo, teacherID, user.ID); err != nil {
				return nil, err
			}
		}
		user.TeacherID = &teacherID
		user.Department = &department
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	user.Email = orDefault(req.Email, user.Email)
	user.MobileNumber = orDefault(req.MobileNumber, user.MobileNumber)

	passwordChanged := req.Password != ""
	if passwordChanged {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	uploaded, err := uploadImage(ctx, s.images, s.logger, image)
	if err != nil {
		return nil, err
	}
	previousImage := deref(user.ProfileImagePublicID)
	if uploaded != nil {
		user.ProfileImageURL = &uploaded.URL
		user.ProfileImagePublicID = &uploaded.PublicID
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if uploaded != nil {
			s.deleteImage(ctx, uploaded.PublicID)
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or mobile number already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	if uploaded != nil && previousImage != "" {
		s.deleteImage(ctx, previousImage)
	}

	writeAudit(ctx, s.audit, s.logger, user.ID, models.AuditActionProfileUpdate, req.ClientInfo)
	if passwordChanged {
		writeAudit(ctx, s.audit, s.logger, user.ID, models.AuditActionPasswordChange, req.ClientInfo)
	}
	profile := user.Profile()
	return &profile, nil
}

// SendResetOTP mails a password reset code.
func (s *ProfileService) SendResetOTP(ctx context.Context, req dto.SendOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	email := normalizeEmail(req.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		return userLookupError(err)
	}
	return s.otps.Issue(ctx, email, models.OTPPurposeReset)
}

// ResetPassword sets a new password after checking the reset code.
// Unknown, mismatched and expired codes answer 400.
func (s *ProfileService) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	email := normalizeEmail(req.Email)
	switch err := s.otps.Verify(ctx, email, models.OTPPurposeReset, req.OTP); {
	case errors.Is(err, errOTPExpired):
		return appErrors.WithStatus(appErrors.ErrExpiredOTP, appErrors.ErrValidation.Status, "OTP expired")
	case errors.Is(err, errOTPMissing), errors.Is(err, errOTPMismatch):
		return appErrors.WithStatus(appErrors.ErrInvalidOTP, appErrors.ErrValidation.Status, "invalid OTP")
	case err != nil:
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePasswordByEmail(ctx, email, string(hash), time.Now().UTC()); err != nil {
		return userLookupError(err)
	}
	if user, err := s.repo.FindByEmail(ctx, email); err == nil {
		writeAudit(ctx, s.audit, s.logger, user.ID, models.AuditActionPasswordChange, req.ClientInfo)
	}
	s.logger.Info("password reset", zap.String("email", email))
	return nil
}

func (s *ProfileService) deleteImage(ctx context.Context, publicID string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, publicID); err != nil {
		s.logger.Warn("failed to delete profile image", zap.String("public_id", publicID), zap.Error(err))
	}
}

func profileLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
