package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/response"
	"github.com/noah-isme/staff-remuneration-api/pkg/storage"
)

type tokenParser interface {
	Parse(token string) (string, error)
}

type mediaStore interface {
	Open(name string) (*os.File, error)
}

// MediaHandler serves locally stored profile images behind signed tokens.
type MediaHandler struct {
	signer tokenParser
	store  mediaStore
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(signer tokenParser, store mediaStore) *MediaHandler {
	return &MediaHandler{signer: signer, store: store}
}

// Serve godoc
// @Summary Stored profile image
// @Tags Media
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{token} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	name, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "link expired"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid media token"))
		return
	}
	file, err := h.store.Open(name)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "media not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, io.Reader(file), nil)
}
