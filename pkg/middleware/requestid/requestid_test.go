package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(HeaderKey, inbound)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return seen, rec.Header().Get(HeaderKey)
}

func TestMiddlewareEchoesInboundID(t *testing.T) {
	seen, header := serve(t, "trace-42")
	assert.Equal(t, "trace-42", seen)
	assert.Equal(t, "trace-42", header)
}

func TestMiddlewareReplacesMissingOrUnsafeIDs(t *testing.T) {
	for _, inbound := range []string{"", "has space", "tab\tid", strings.Repeat("a", 129)} {
		seen, header := serve(t, inbound)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, inbound)
		assert.Equal(t, seen, header)
	}
}
