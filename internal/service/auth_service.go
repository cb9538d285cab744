package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/repository"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/imagehost"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByMobile(ctx context.Context, mobile string) (*models.User, error)
	FindConflict(ctx context.Context, email, mobile, excludeID string) (*models.User, error)
	TeacherIDTaken(ctx context.Context, teacherID, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ImageUpload is a profile picture received with a signup or profile update.
type ImageUpload struct {
	Filename string
	Reader   io.Reader
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService provides signup and the three login flows.
type AuthService struct {
	repo      authUserRepository
	audit     auditRecorder
	otps      *OTPService
	images    imagehost.Host
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, audit auditRecorder, otps *OTPService, images imagehost.Host, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{repo: repo, audit: audit, otps: otps, images: images, validator: validate, logger: logger, config: config}
}

// Signup registers an account and signs the caller in.
func (s *AuthService) Signup(ctx context.Context, req dto.SignupRequest, image *ImageUpload) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if err := s.ensureNoConflict(ctx, req.Email, req.MobileNumber, ""); err != nil {
		return nil, err
	}

	user := &models.User{
		Role:         models.UserRole(req.Role),
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
	}
	if user.Role == models.RoleTeacher {
		if err := s.ensureTeacherIDFree(ctx, req.TeacherID, ""); err != nil {
			return nil, err
		}
		user.TeacherID = &req.TeacherID
		user.Department = &req.Department
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user.PasswordHash = string(hash)

	uploaded, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}
	if uploaded != nil {
		user.ProfileImageURL = &uploaded.URL
		user.ProfileImagePublicID = &uploaded.PublicID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if uploaded != nil {
			s.discardImage(ctx, uploaded.PublicID)
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "user with this email or mobile number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.recordAudit(ctx, user.ID, models.AuditActionSignup, req.ClientInfo)
	return s.issue(user)
}

// LoginEmailPassword signs in with email and password.
func (s *AuthService) LoginEmailPassword(ctx context.Context, req dto.EmailPasswordLoginRequest) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, userLookupError(err)
	}
	return s.passwordLogin(ctx, user, req.Password, req.ClientInfo)
}

// LoginMobilePassword signs in with mobile number and password.
func (s *AuthService) LoginMobilePassword(ctx context.Context, req dto.MobilePasswordLoginRequest) (*models.AuthResponse, error) {
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	user, err := s.repo.FindByMobile(ctx, req.MobileNumber)
	if err != nil {
		return nil, userLookupError(err)
	}
	return s.passwordLogin(ctx, user, req.Password, req.ClientInfo)
}

// SendLoginOTP mails a login code to a registered address.
func (s *AuthService) SendLoginOTP(ctx context.Context, req dto.SendOTPRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	email := req.Email
	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		return userLookupError(err)
	}
	return s.otps.Issue(ctx, email, models.OTPPurposeLogin)
}

// LoginEmailOTP exchanges a valid login code for a token.
func (s *AuthService) LoginEmailOTP(ctx context.Context, req dto.EmailOTPLoginRequest) (*models.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	email := req.Email
	switch err := s.otps.Verify(ctx, email, models.OTPPurposeLogin, req.OTP); {
	case errors.Is(err, errOTPExpired):
		return nil, appErrors.Clone(appErrors.ErrExpiredOTP, "OTP has expired")
	case errors.Is(err, errOTPMissing), errors.Is(err, errOTPMismatch):
		return nil, appErrors.Clone(appErrors.ErrInvalidOTP, "invalid OTP")
	case err != nil:
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, userLookupError(err)
	}
	s.recordAudit(ctx, user.ID, models.AuditActionLogin, req.ClientInfo)
	return s.issue(user)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) passwordLogin(ctx context.Context, user *models.User, password string, client dto.ClientInfo) (*models.AuthResponse, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid password")
	}
	s.recordAudit(ctx, user.ID, models.AuditActionLogin, client)
	return s.issue(user)
}

func (s *AuthService) ensureNoConflict(ctx context.Context, email, mobile, excludeID string) error {
	return checkConflict(ctx, s.repo, email, mobile, excludeID)
}

func (s *AuthService) ensureTeacherIDFree(ctx context.Context, teacherID, excludeID string) error {
	return checkTeacherID(ctx, s.repo, teacherID, excludeID)
}

func (s *AuthService) upload(ctx context.Context, image *ImageUpload) (*imagehost.Image, error) {
	return uploadImage(ctx, s.images, s.logger, image)
}

func (s *AuthService) discardImage(ctx context.Context, publicID string) {
	if err := s.images.Delete(ctx, publicID); err != nil {
		s.logger.Warn("failed to discard uploaded image", zap.String("public_id", publicID), zap.Error(err))
	}
}

func (s *AuthService) recordAudit(ctx context.Context, userID, action string, client dto.ClientInfo) {
	writeAudit(ctx, s.audit, s.logger, userID, action, client)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.config.AccessTokenExpiry.Seconds()),
		User:      models.UserInfo{ID: user.ID, Name: user.Name, Role: user.Role},
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

type conflictFinder interface {
	FindConflict(ctx context.Context, email, mobile, excludeID string) (*models.User, error)
	TeacherIDTaken(ctx context.Context, teacherID, excludeID string) (bool, error)
}

func checkConflict(ctx context.Context, repo conflictFinder, email, mobile, excludeID string) error {
	existing, err := repo.FindConflict(ctx, email, mobile, excludeID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing users")
	case existing == nil:
		return nil
	case existing.Email == email:
		return appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	default:
		return appErrors.Clone(appErrors.ErrConflict, "mobile number is already registered")
	}
}

func checkTeacherID(ctx context.Context, repo conflictFinder, teacherID, excludeID string) error {
	taken, err := repo.TeacherIDTaken(ctx, teacherID, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher id")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "teacher id is already registered")
	}
	return nil
}

func uploadImage(ctx context.Context, host imagehost.Host, logger *zap.Logger, image *ImageUpload) (*imagehost.Image, error) {
	if image == nil || image.Reader == nil {
		return nil, nil
	}
	if host == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "image uploads are not configured")
	}
	uploaded, err := host.Upload(ctx, image.Filename, image.Reader)
	if err != nil {
		logger.Error("profile image upload failed", zap.String("filename", image.Filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upload profile image")
	}
	return uploaded, nil
}

func writeAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, userID, action string, client dto.ClientInfo) {
	if repo == nil {
		return
	}
	if err := repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "user",
		ResourceID: &userID,
		NewValues:  []byte(`{"status":"success"}`),
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
	}); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func userLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
