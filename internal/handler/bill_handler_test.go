package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/middleware"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

type billServiceMock struct {
	bills     []models.Bill
	cached    bool
	err       error
	created   dto.BillRequest
	patched   dto.BillRequest
	deletedID string
}

func (m *billServiceMock) Create(ctx context.Context, claims *models.JWTClaims, req dto.BillRequest) (*models.Bill, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Bill{ID: "bill-1", UserID: claims.UserID, Department: *req.Department}, nil
}

func (m *billServiceMock) List(ctx context.Context, claims *models.JWTClaims) ([]models.Bill, bool, error) {
	return m.bills, m.cached, m.err
}

func (m *billServiceMock) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Bill, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Bill{ID: id, UserID: claims.UserID}, nil
}

func (m *billServiceMock) Update(ctx context.Context, claims *models.JWTClaims, id string, patch dto.BillRequest) (*models.Bill, error) {
	m.patched = patch
	if m.err != nil {
		return nil, m.err
	}
	return &models.Bill{ID: id, PresentStudents: *patch.PresentStudents}, nil
}

func (m *billServiceMock) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	m.deletedID = id
	return m.err
}

func TestBillHandlerCreate(t *testing.T) {
	mock := &billServiceMock{}
	h := NewBillHandler(mock)

	c, w := newGinContext(http.MethodPost, "/api/bill", []byte(`{"department":"Computer Science","paperNo":3}`))
	authed(c)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.created.PaperNo)
	assert.Equal(t, dto.FlexibleString("3"), *mock.created.PaperNo)
	assert.Equal(t, "bill-1", c.GetString(middleware.AuditResourceIDKey))

	env := decodeEnvelope(t, w)
	assert.Equal(t, "user-1", env.Data.(map[string]interface{})["userId"])
}

func TestBillHandlerCreateRejectsWrongTypes(t *testing.T) {
	h := NewBillHandler(&billServiceMock{})

	c, w := newGinContext(http.MethodPost, "/api/bill", []byte(`{"semester":"three"}`))
	authed(c)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "semester", env.Errors[0].Field)
}

func TestBillHandlerCreateSurfacesFieldErrors(t *testing.T) {
	mock := &billServiceMock{err: appErrors.Validation([]appErrors.FieldError{
		{Field: "semester", Message: "must be between 1 and 6"},
		{Field: "batches", Message: "is required"},
	})}
	h := NewBillHandler(mock)

	c, w := newGinContext(http.MethodPost, "/api/bill", []byte(`{"department":"Arts"}`))
	authed(c)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Len(t, env.Errors, 2)
	assert.Empty(t, c.GetString(middleware.AuditResourceIDKey))
}

func TestBillHandlerListMeta(t *testing.T) {
	mock := &billServiceMock{cached: true, bills: []models.Bill{{ID: "b1"}, {ID: "b2"}}}
	h := NewBillHandler(mock)

	r := gin.New()
	r.Use(middleware.WithResponseMeta(), authed)
	r.GET("/api/bill", h.List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bill", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cacheHit"])
	assert.EqualValues(t, 2, env.Meta["count"])
	assert.Len(t, env.Data, 2)
}

func TestBillHandlerListEmptyIsArray(t *testing.T) {
	h := NewBillHandler(&billServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/bill", nil)
	authed(c)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "[]", string(raw["data"]))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}

func TestBillHandlerGetForbidden(t *testing.T) {
	h := NewBillHandler(&billServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "not allowed to access this bill")})

	c, w := newGinContext(http.MethodGet, "/api/bill/b9", nil)
	c.Params = gin.Params{{Key: "id", Value: "b9"}}
	authed(c)
	h.Get(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBillHandlerUpdateAndDelete(t *testing.T) {
	mock := &billServiceMock{}
	h := NewBillHandler(mock)

	c, w := newGinContext(http.MethodPut, "/api/bill/b1", []byte(`{"presentStudents":42}`))
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mock.patched.TotalStudents)
	require.NotNil(t, mock.patched.PresentStudents)
	assert.Equal(t, 42, *mock.patched.PresentStudents)

	c, w = newGinContext(http.MethodDelete, "/api/bill/b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	authed(c)
	h.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b1", mock.deletedID)
	assert.Equal(t, "bill deleted", decodeEnvelope(t, w).Message)
}

func TestBillHandlerRequiresClaims(t *testing.T) {
	h := NewBillHandler(&billServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/bill", nil)
	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
