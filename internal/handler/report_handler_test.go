package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-remuneration-api/internal/middleware"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
)

type reportServiceMock struct {
	doc       *service.RenderedDocument
	err       error
	mailTo    string
	kind      service.DocumentKind
	id        string
	recipient *string
}

func (m *reportServiceMock) Download(ctx context.Context, claims *models.JWTClaims, id string, kind service.DocumentKind) (*service.RenderedDocument, error) {
	m.id, m.kind = id, kind
	return m.doc, m.err
}

func (m *reportServiceMock) DownloadBankForm(ctx context.Context) (*service.RenderedDocument, error) {
	m.kind = service.DocumentBankForm
	return m.doc, m.err
}

func (m *reportServiceMock) Mail(ctx context.Context, claims *models.JWTClaims, id string, kind service.DocumentKind, recipient *string) (string, error) {
	m.id, m.kind, m.recipient = id, kind, recipient
	if m.err != nil {
		return "", m.err
	}
	if recipient != nil {
		return *recipient, nil
	}
	return m.mailTo, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authed(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher, Email: "teacher@example.com"})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestReportHandlerStreamsPDF(t *testing.T) {
	mock := &reportServiceMock{doc: &service.RenderedDocument{Filename: "bill_b1.pdf", Data: []byte("%PDF-1.3")}}
	h := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/api/bill/download/b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.DownloadMain(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="bill_b1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
	assert.Equal(t, service.DocumentMainReport, mock.kind)
	assert.Equal(t, "b1", mock.id)
}

func TestReportHandlerPersonalAndBankForm(t *testing.T) {
	mock := &reportServiceMock{doc: &service.RenderedDocument{Filename: "x.pdf", Data: []byte("%PDF")}}
	h := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/api/bill/download/personalBill/b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.DownloadPersonal(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DocumentPersonalBills, mock.kind)

	c, w = newGinContext(http.MethodGet, "/api/bill/download/bank-detail-form", nil)
	authed(c)
	h.DownloadBankForm(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.DocumentBankForm, mock.kind)
}

func TestReportHandlerDownloadFailuresArePlainText(t *testing.T) {
	mock := &reportServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "bill not found")}
	h := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/api/bill/download/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	authed(c)
	h.DownloadMain(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "bill not found", w.Body.String())
	assert.NotContains(t, w.Header().Get("Content-Type"), "pdf")

	mock.err = appErrors.ErrRenderFailed
	c, w = newGinContext(http.MethodGet, "/api/bill/download/b1", nil)
	authed(c)
	h.DownloadMain(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error generating PDF", w.Body.String())
}

func TestReportHandlerMailSelf(t *testing.T) {
	mock := &reportServiceMock{mailTo: "teacher@example.com"}
	h := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/api/bill/mail/mainBill/b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.MailMain(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mock.recipient)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "teacher@example.com", env.Data.(map[string]interface{})["recipient"])
}

func TestReportHandlerMailOther(t *testing.T) {
	mock := &reportServiceMock{}
	h := NewReportHandler(mock)

	body, _ := json.Marshal(map[string]string{"email": "accounts@example.com"})
	c, w := newGinContext(http.MethodPost, "/api/bill/mail/personalBill/other/b1", body)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.MailPersonalOther(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.recipient)
	assert.Equal(t, "accounts@example.com", *mock.recipient)
	assert.Equal(t, service.DocumentPersonalBills, mock.kind)
}

func TestReportHandlerMailErrorsAreJSON(t *testing.T) {
	mock := &reportServiceMock{err: appErrors.Validation([]appErrors.FieldError{{Field: "email", Message: "must be a valid email address"}})}
	h := NewReportHandler(mock)

	body, _ := json.Marshal(map[string]string{"email": "not-an-email"})
	c, w := newGinContext(http.MethodPost, "/api/bill/mail/mainBill/other/b1", body)
	authed(c)
	h.MailMainOther(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "email", env.Errors[0].Field)

	c, w = newGinContext(http.MethodPost, "/api/bill/mail/mainBill/other/b1", []byte(`{"email":`))
	authed(c)
	h.MailMainOther(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerRequiresClaims(t *testing.T) {
	h := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/bill/download/b1", nil)
	h.DownloadMain(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
