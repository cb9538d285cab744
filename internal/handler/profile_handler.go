package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, claims *models.JWTClaims) (*models.UserProfile, error)
	Update(ctx context.Context, claims *models.JWTClaims, req dto.UpdateProfileRequest, image *service.ImageUpload) (*models.UserProfile, error)
	SendResetOTP(ctx context.Context, req dto.SendOTPRequest) error
	ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) error
}

// ProfileHandler serves the signed-in user's account.
type ProfileHandler struct {
	service       profileService
	maxImageBytes int64
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(svc profileService, maxImageBytes int64) *ProfileHandler {
	return &ProfileHandler{service: svc, maxImageBytes: maxImageBytes}
}

// Get godoc
// @Summary Current profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	profile, err := h.service.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// Update godoc
// @Summary Update profile
// @Description Partial update; accepts JSON or multipart form data with an optional profileImage file
// @Tags Profile
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateProfileRequest
	image, release, err := bindAccountForm(c, &req, h.maxImageBytes)
	defer release()
	if err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	profile, err := h.service.Update(c.Request.Context(), claims, req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// SendResetOTP godoc
// @Summary Mail a password reset OTP
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.SendOTPRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /profile/change-password/send-otp [post]
func (h *ProfileHandler) SendResetOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.SendResetOTP(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "OTP sent to email")
}

// ResetPassword godoc
// @Summary Change password with an OTP
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.ResetPasswordRequest true "Email, OTP and new password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile/change-password/verify-otp [post]
func (h *ProfileHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "password updated")
}
