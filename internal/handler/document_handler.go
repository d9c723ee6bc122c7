package handler

import (
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/response"
)

type documentOpener interface {
	Open(token string) (*os.File, string, error)
}

// DocumentHandler streams stored onboarding documents.
type DocumentHandler struct {
	documents documentOpener
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents documentOpener) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Download godoc
// @Summary Download a stored document
// @Tags Onboarding
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /onboarding/documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.documents.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Transient(err, "document storage unavailable"))
		return
	}
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(file); err == nil {
		contentType = mt.String()
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		response.Error(c, appErrors.Transient(err, "document storage unavailable"))
		return
	}

	response.Stream(c, name, contentType, info.Size(), file)
}
