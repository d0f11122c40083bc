// Package middleware provides HTTP middleware for authentication, logging, and rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
)

// AccountContextKey is the key for storing the account in the request context.
const AccountContextKey = "account"

// TokenVerifier resolves a bearer token to an account.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.Account, error)
}

// AuthRequired rejects requests without a valid bearer token. When
// allowQuery is set the token may also come from the access_token query
// parameter, for clients that cannot set headers (WebSocket).
func AuthRequired(verifier TokenVerifier, logger hclog.Logger, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		account, err := verifier.VerifyToken(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, services.ErrInvalidToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		default:
			logger.Warn("token verification failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
			return
		}

		c.Set(AccountContextKey, account)
		c.Next()
	}
}

// GetAccount returns the account stored by AuthRequired, or nil.
func GetAccount(c *gin.Context) *models.Account {
	value, ok := c.Get(AccountContextKey)
	if !ok {
		return nil
	}
	account, _ := value.(*models.Account)
	return account
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
