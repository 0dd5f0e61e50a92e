package api

import (
	"mime"
	"net/http"
	"path/filepath"

	"chat-relay/internal/blob"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// AttachmentHandler resolves storage names under /uploads to attachment
// bytes, whichever blob backend the service runs on. This keeps the
// `file` reference in persisted and forwarded frames resolvable.
type AttachmentHandler struct {
	blobs blob.Store
}

func NewAttachmentHandler(blobs blob.Store) *AttachmentHandler {
	return &AttachmentHandler{blobs: blobs}
}

func (h *AttachmentHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	data, err := h.blobs.Read(c.Request.Context(), name)
	if err != nil {
		response.NotFound(c, "attachment not found")
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Data(http.StatusOK, contentType, data)
}
