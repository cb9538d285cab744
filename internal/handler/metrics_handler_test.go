package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-remuneration-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	up := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	r := gin.New()
	r.GET("/ready", NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": up, "redis": nil}).Ready)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	r = gin.New()
	r.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{"postgres": up, "redis": down}).Ready)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"postgres": "up", "redis": "down"}, body.Checks)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordOTPIssued("login")

	r := gin.New()
	h := NewMetricsHandler(metrics, nil)
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/summary", h.Snapshot)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `otp_issued_total{purpose="login"} 1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
