package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// GetMessagesController serves a thread's ordered history.
type GetMessagesController struct {
	Store repository.DataStore
}

func NewGetMessagesController(store repository.DataStore) *GetMessagesController {
	return &GetMessagesController{Store: store}
}

func (h *GetMessagesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := threadFromParams(c.Param("threadId"), c.DefaultQuery("kind", "direct"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be direct or group"})
			return
		}
		self := c.GetString(ctxAccountID)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		ok, err := canAddress(ctx, h.Store, self, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "thread not addressable"})
			return
		}

		msgs, err := h.Store.ThreadMessages(ctx, self, t)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
	}
}
