package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest("GET", "/api/bills", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/api/bills", http.StatusCreated, 40*time.Millisecond)
	m.RenderSessionOpened()
	m.ObserveRender(string(DocumentMainReport), nil, time.Millisecond)
	m.ObserveRender(string(DocumentMainReport), errors.New("boom"), time.Millisecond)
	m.RecordMail("main-report", nil)
	m.RecordMail("otp_login", errors.New("smtp down"))
	m.RecordOTPIssued("login")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.DocumentsRendered)
	assert.Equal(t, int64(1), snap.OpenRenderSessions)
	assert.Equal(t, uint64(1), snap.MailsSent)
	assert.Equal(t, uint64(1), snap.MailsFailed)
	assert.Positive(t, snap.Goroutines)

	m.RenderSessionClosed()
	assert.Equal(t, int64(0), m.Snapshot().OpenRenderSessions)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordOTPIssued("reset")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `otp_issued_total{purpose="reset"} 1`)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordMail("x", nil)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
