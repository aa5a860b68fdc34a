package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// SignOutController invalidates the caller's session token.
type SignOutController struct {
	Auth repository.Auth
}

func NewSignOutController(auth repository.Auth) *SignOutController {
	return &SignOutController{Auth: auth}
}

func (h *SignOutController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Auth.SignOut(c.Request.Context(), bearerToken(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-out failed"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
