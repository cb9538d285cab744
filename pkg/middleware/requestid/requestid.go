package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKey carries the request id in both directions.
const HeaderKey = "X-Request-ID"

const (
	contextKey = "request_id"
	maxLength  = 128
)

// Middleware echoes a well-formed inbound X-Request-ID or mints a UUID.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderKey)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Header(HeaderKey, id)
		c.Next()
	}
}

// Value returns the id assigned to the request, or "".
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

// acceptable allows up to maxLength printable ASCII characters without spaces.
func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
