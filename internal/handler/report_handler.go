package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
)

type reportService interface {
	Download(ctx context.Context, claims *models.JWTClaims, id string, kind service.DocumentKind) (*service.RenderedDocument, error)
	DownloadBankForm(ctx context.Context) (*service.RenderedDocument, error)
	Mail(ctx context.Context, claims *models.JWTClaims, id string, kind service.DocumentKind, recipient *string) (string, error)
}

// ReportHandler streams and mails bill documents.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// DownloadMain godoc
// @Summary Main remuneration report
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Bill ID"
// @Success 200 {file} binary
// @Failure 404 {string} string
// @Failure 500 {string} string
// @Router /bill/download/{id} [get]
func (h *ReportHandler) DownloadMain(c *gin.Context) {
	h.download(c, service.DocumentMainReport)
}

// DownloadPersonal godoc
// @Summary Personal bills for every staff member of a bill
// @Tags Reports
// @Produce application/pdf
// @Param id path string true "Bill ID"
// @Success 200 {file} binary
// @Failure 404 {string} string
// @Failure 500 {string} string
// @Router /bill/download/personalBill/{id} [get]
func (h *ReportHandler) DownloadPersonal(c *gin.Context) {
	h.download(c, service.DocumentPersonalBills)
}

// DownloadBankForm godoc
// @Summary Blank bank details form
// @Tags Reports
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 500 {string} string
// @Router /bill/download/bank-detail-form [get]
func (h *ReportHandler) DownloadBankForm(c *gin.Context) {
	doc, err := h.service.DownloadBankForm(c.Request.Context())
	if err != nil {
		response.Text(c, err)
		return
	}
	writePDF(c, doc)
}

// MailMain godoc
// @Summary Mail the main report to the caller
// @Tags Reports
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /bill/mail/mainBill/{id} [get]
func (h *ReportHandler) MailMain(c *gin.Context) {
	h.mail(c, service.DocumentMainReport, false)
}

// MailMainOther godoc
// @Summary Mail the main report to another address
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param payload body dto.MailRequest true "Recipient"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bill/mail/mainBill/other/{id} [post]
func (h *ReportHandler) MailMainOther(c *gin.Context) {
	h.mail(c, service.DocumentMainReport, true)
}

// MailPersonal godoc
// @Summary Mail the personal bills to the caller
// @Tags Reports
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /bill/mail/personalBill/{id} [get]
func (h *ReportHandler) MailPersonal(c *gin.Context) {
	h.mail(c, service.DocumentPersonalBills, false)
}

// MailPersonalOther godoc
// @Summary Mail the personal bills to another address
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param payload body dto.MailRequest true "Recipient"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bill/mail/personalBill/other/{id} [post]
func (h *ReportHandler) MailPersonalOther(c *gin.Context) {
	h.mail(c, service.DocumentPersonalBills, true)
}

func (h *ReportHandler) download(c *gin.Context, kind service.DocumentKind) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Text(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Download(c.Request.Context(), claims, c.Param("id"), kind)
	if err != nil {
		response.Text(c, err)
		return
	}
	writePDF(c, doc)
}

func (h *ReportHandler) mail(c *gin.Context, kind service.DocumentKind, other bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var recipient *string
	if other {
		var req dto.MailRequest
		if err := bindJSON(c, &req); err != nil {
			response.Error(c, err)
			return
		}
		recipient = &req.Email
	}
	to, err := h.service.Mail(c.Request.Context(), claims, c.Param("id"), kind, recipient)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "email sent", "recipient": to})
}

func writePDF(c *gin.Context, doc *service.RenderedDocument) {
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc.Data)
}
