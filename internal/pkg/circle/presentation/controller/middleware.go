package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// Context keys set by the middleware chain.
const (
	ctxAccountID = "accountID"
	ctxAccount   = "account"
)

// bearerToken pulls the session token from the Authorization header or,
// for websocket upgrades where headers are awkward, the token query
// parameter.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// RequireSession resolves the session token to an account id.
func RequireSession(auth repository.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, err := auth.Verify(c.Request.Context(), bearerToken(c))
		if err != nil {
			if errors.Is(err, repository.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session lookup failed"})
			return
		}
		c.Set(ctxAccountID, accountID)
		c.Next()
	}
}

// RequireApproved loads the account row and blocks pending and banned
// accounts from every messaging view.
func RequireApproved(store repository.DataStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetString(ctxAccountID)
		acct, err := store.Account(c.Request.Context(), accountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account setup incomplete"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "account lookup failed"})
			return
		}
		if acct.Status != circle.StatusApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is " + string(acct.Status)})
			return
		}
		c.Set(ctxAccount, acct)
		c.Next()
	}
}

// RequireAdmin runs after RequireApproved and gates the roster.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, ok := c.MustGet(ctxAccount).(circle.Account)
		if !ok || !acct.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
