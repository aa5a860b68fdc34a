package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Behappytocode/circle/internal/pkg/circle/application/roster"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// ListAccountsController serves the admin review queue. ?status=pending
// or ?status=banned narrows the listing; the default shows both.
type ListAccountsController struct {
	Roster *roster.Roster
}

func NewListAccountsController(r *roster.Roster) *ListAccountsController {
	return &ListAccountsController{Roster: r}
}

func (h *ListAccountsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []circle.Status
		for _, s := range c.QueryArray("status") {
			statuses = append(statuses, circle.Status(s))
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		accounts, err := h.Roster.List(ctx, statuses...)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
	}
}

// SetStatusController applies an approve/ban transition and returns the
// refreshed review queue.
type SetStatusController struct {
	Roster *roster.Roster
}

func NewSetStatusController(r *roster.Roster) *SetStatusController {
	return &SetStatusController{Roster: r}
}

type setStatusRequest struct {
	Status circle.Status `json:"status" binding:"required"`
}

func (h *SetStatusController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		accounts, err := h.Roster.SetStatus(ctx, c.Param("accountId"), req.Status)
		if err != nil {
			switch {
			case errors.Is(err, roster.ErrBadTransition):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			case errors.Is(err, repository.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "status change failed"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts, "count": len(accounts)})
	}
}

// PurgeAccountController enqueues removal of a banned account's rows.
type PurgeAccountController struct {
	Roster *roster.Roster
}

func NewPurgeAccountController(r *roster.Roster) *PurgeAccountController {
	return &PurgeAccountController{Roster: r}
}

func (h *PurgeAccountController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		taskID, err := h.Roster.Purge(ctx, c.Param("accountId"))
		if err != nil {
			switch {
			case errors.Is(err, roster.ErrNotBanned):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			case errors.Is(err, repository.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
			default:
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue purge"})
			}
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "task_id": taskID})
	}
}
