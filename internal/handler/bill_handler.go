package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/middleware"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
)

type billService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req dto.BillRequest) (*models.Bill, error)
	List(ctx context.Context, claims *models.JWTClaims) ([]models.Bill, bool, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Bill, error)
	Update(ctx context.Context, claims *models.JWTClaims, id string, patch dto.BillRequest) (*models.Bill, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
}

// BillHandler exposes bill CRUD endpoints.
type BillHandler struct {
	service billService
}

// NewBillHandler constructs a bill handler.
func NewBillHandler(svc billService) *BillHandler {
	return &BillHandler{service: svc}
}

// Create godoc
// @Summary Create bill
// @Description absentStudents is derived when omitted; amountInWords is derived from totalAmount when omitted
// @Tags Bills
// @Accept json
// @Produce json
// @Param payload body dto.BillRequest true "Bill payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bill [post]
func (h *BillHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BillRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	bill, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditResourceIDKey, bill.ID)
	response.Created(c, bill)
}

// List godoc
// @Summary List own bills
// @Tags Bills
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bill [get]
func (h *BillHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	bills, cached, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if bills == nil {
		bills = []models.Bill{}
	}
	middleware.SetCacheHit(c, cached)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["count"] = len(bills)
	response.JSON(c, http.StatusOK, bills, meta)
}

// Get godoc
// @Summary Get bill
// @Tags Bills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bill/{id} [get]
func (h *BillHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	bill, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bill)
}

// Update godoc
// @Summary Update bill
// @Description Fields left out keep their stored values; the merged bill is validated again
// @Tags Bills
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param payload body dto.BillRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bill/{id} [put]
func (h *BillHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var patch dto.BillRequest
	if err := bindJSON(c, &patch); err != nil {
		response.Error(c, err)
		return
	}
	bill, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bill)
}

// Delete godoc
// @Summary Delete bill
// @Tags Bills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bill/{id} [delete]
func (h *BillHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "bill deleted")
}
