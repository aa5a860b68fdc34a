package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// SignUpController handles account registration. New accounts start
// pending and wait for admin approval.
type SignUpController struct {
	Auth repository.Auth
}

func NewSignUpController(auth repository.Auth) *SignUpController {
	return &SignUpController{Auth: auth}
}

type signUpRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
}

func (h *SignUpController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		acct, err := h.Auth.SignUp(ctx, req.DisplayName, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNameTaken):
				c.JSON(http.StatusConflict, gin.H{"error": "display name already taken"})
			case errors.Is(err, repository.ErrInvalidCredentials):
				c.JSON(http.StatusBadRequest, gin.H{"error": "display name and password are required"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-up failed"})
			}
			return
		}
		c.JSON(http.StatusCreated, gin.H{"account": acct})
	}
}
