package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// SignInController verifies credentials and mints a session token.
type SignInController struct {
	Auth repository.Auth
}

func NewSignInController(auth repository.Auth) *SignInController {
	return &SignInController{Auth: auth}
}

type signInRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Password    string `json:"password" binding:"required"`
}

func (h *SignInController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		accountID, token, err := h.Auth.SignIn(ctx, req.DisplayName, req.Password)
		if err != nil {
			if errors.Is(err, repository.ErrInvalidCredentials) {
				// Surfaced inline on the sign-in form, not as a server fault.
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "token": token})
	}
}
