package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/middleware"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

// profileImageField is the multipart field carrying a profile picture.
const profileImageField = "profileImage"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func clientInfo(c *gin.Context) dto.ClientInfo {
	return dto.ClientInfo{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// bindJSON decodes the body into dest, turning decode failures into field errors.
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return service.BindError(err)
	}
	return nil
}

// bindAccountForm decodes a JSON or multipart account payload and opens the
// optional profile image. The returned release func must always be called.
func bindAccountForm(c *gin.Context, dest interface{}, maxImageBytes int64) (*service.ImageUpload, func(), error) {
	noop := func() {}
	if !isMultipart(c) {
		return nil, noop, bindJSON(c, dest)
	}
	if err := c.ShouldBind(dest); err != nil {
		return nil, noop, service.BindError(err)
	}
	header, err := c.FormFile(profileImageField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, appErrors.Validation([]appErrors.FieldError{{Field: profileImageField, Message: "could not read upload"}})
	}
	if maxImageBytes > 0 && header.Size > maxImageBytes {
		return nil, noop, appErrors.Validation([]appErrors.FieldError{{Field: profileImageField, Message: "file is too large"}})
	}
	file, err := header.Open()
	if err != nil {
		return nil, noop, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	return &service.ImageUpload{Filename: header.Filename, Reader: file}, func() { _ = file.Close() }, nil
}
