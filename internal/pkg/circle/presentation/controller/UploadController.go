package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Behappytocode/circle/internal/pkg/circle/application/upload"
)

// maxAttachmentBytes caps a single attachment at 10MB.
const maxAttachmentBytes = 10 << 20

// UploadController stores an attachment and returns its public URL.
// Upload failure aborts that send only; the client keeps its composer
// state and may retry.
type UploadController struct {
	Uploader *upload.Uploader
}

func NewUploadController(u *upload.Uploader) *UploadController {
	return &UploadController{Uploader: u}
}

func (h *UploadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := upload.Kind(c.PostForm("kind"))
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
			return
		}
		if file.Size > maxAttachmentBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment exceeds 10MB"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, maxAttachmentBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		url, err := h.Uploader.Upload(ctx, kind, file.Filename, data)
		if err != nil {
			if errors.Is(err, upload.ErrUnknownKind) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be image or audio"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"url": url})
	}
}
