package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// SendMessageController issues a message insert addressed to a thread.
// The caller's live view picks the message up from the insert's own
// change-feed echo; nothing is rendered optimistically here.
type SendMessageController struct {
	Store repository.DataStore
}

func NewSendMessageController(store repository.DataStore) *SendMessageController {
	return &SendMessageController{Store: store}
}

type sendMessageRequest struct {
	Kind     string  `json:"kind" binding:"required"`
	Body     *string `json:"body"`
	ImageURL *string `json:"image_url"`
	AudioURL *string `json:"audio_url"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		t, ok := threadFromParams(c.Param("threadId"), req.Kind)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be direct or group"})
			return
		}

		self := c.GetString(ctxAccountID)
		m := circle.Message{
			ID:       uuid.NewString(),
			SenderID: self,
			Body:     req.Body,
			ImageURL: req.ImageURL,
			AudioURL: req.AudioURL,
		}
		switch t.Kind {
		case circle.ThreadGroup:
			m.GroupID = &t.ID
		case circle.ThreadDirect:
			m.ReceiverID = &t.ID
		}

		validated, err := circle.NewMessage(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		allowed, err := canAddress(ctx, h.Store, self, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "thread not addressable"})
			return
		}

		if err := h.Store.InsertMessage(ctx, *validated); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown thread"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": validated})
	}
}
