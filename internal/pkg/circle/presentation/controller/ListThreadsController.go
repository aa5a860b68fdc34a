package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Behappytocode/circle/internal/pkg/circle/application/directory"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// ListThreadsController serves the caller's thread directory. The
// websocket session keeps a live directory; this endpoint runs the same
// listing once for plain HTTP consumers.
type ListThreadsController struct {
	Store repository.DataStore
}

func NewListThreadsController(store repository.DataStore) *ListThreadsController {
	return &ListThreadsController{Store: store}
}

func (h *ListThreadsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		self := c.GetString(ctxAccountID)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		threads, err := directory.List(ctx, h.Store, self)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list threads"})
			return
		}
		if q := c.Query("q"); q != "" {
			threads = filterThreads(threads, q)
		}
		c.JSON(http.StatusOK, gin.H{"threads": threads, "count": len(threads)})
	}
}

func filterThreads(threads []circle.Thread, q string) []circle.Thread {
	out := threads[:0]
	for _, t := range threads {
		if containsFold(t.DisplayName, q) {
			out = append(out, t)
		}
	}
	return out
}
