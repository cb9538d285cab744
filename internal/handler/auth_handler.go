package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
)

type authService interface {
	Signup(ctx context.Context, req dto.SignupRequest, image *service.ImageUpload) (*models.AuthResponse, error)
	LoginEmailPassword(ctx context.Context, req dto.EmailPasswordLoginRequest) (*models.AuthResponse, error)
	LoginMobilePassword(ctx context.Context, req dto.MobilePasswordLoginRequest) (*models.AuthResponse, error)
	SendLoginOTP(ctx context.Context, req dto.SendOTPRequest) error
	LoginEmailOTP(ctx context.Context, req dto.EmailOTPLoginRequest) (*models.AuthResponse, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service       authService
	maxImageBytes int64
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, maxImageBytes int64) *AuthHandler {
	return &AuthHandler{service: svc, maxImageBytes: maxImageBytes}
}

// Signup godoc
// @Summary Register an account
// @Description Accepts JSON or multipart form data with an optional profileImage file
// @Tags Authentication
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /authentication/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	image, release, err := bindAccountForm(c, &req, h.maxImageBytes)
	defer release()
	if err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	res, err := h.service.Signup(c.Request.Context(), req, image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// LoginEmailPassword godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.EmailPasswordLoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /authentication/login/email-password [post]
func (h *AuthHandler) LoginEmailPassword(c *gin.Context) {
	var req dto.EmailPasswordLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	res, err := h.service.LoginEmailPassword(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// LoginMobilePassword godoc
// @Summary Sign in with mobile number and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.MobilePasswordLoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /authentication/login/number-password [post]
func (h *AuthHandler) LoginMobilePassword(c *gin.Context) {
	var req dto.MobilePasswordLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	res, err := h.service.LoginMobilePassword(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// SendLoginOTP godoc
// @Summary Mail a login OTP
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.SendOTPRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /authentication/login/sent-otp [post]
func (h *AuthHandler) SendLoginOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.SendLoginOTP(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "OTP sent to email")
}

// LoginEmailOTP godoc
// @Summary Sign in with an emailed OTP
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.EmailOTPLoginRequest true "Email and OTP"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /authentication/login/email-otp [post]
func (h *AuthHandler) LoginEmailOTP(c *gin.Context) {
	var req dto.EmailOTPLoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	req.ClientInfo = clientInfo(c)

	res, err := h.service.LoginEmailOTP(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
