package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entitle/internal/application/dto"
	"github.com/turtacn/entitle/pkg/logger"
)

// ContextKeyBearer is the gin context key holding the caller's bearer token.
const ContextKeyBearer = "bearer_token"

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireBearer rejects requests without a bearer token. When accepted is not
// empty the token must be one of its entries.
func RequireBearer(accepted []string, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			log.Warn(c.Request.Context(), "Request without bearer token", logger.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:            "invalid_token",
				ErrorDescription: "a bearer token is required",
			})
			return
		}
		if len(accepted) > 0 && !tokenAccepted(token, accepted) {
			log.Warn(c.Request.Context(), "Request with unknown bearer token", logger.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:            "invalid_token",
				ErrorDescription: "the bearer token is not accepted",
			})
			return
		}
		c.Set(ContextKeyBearer, token)
		c.Next()
	}
}

func tokenAccepted(token string, accepted []string) bool {
	for _, a := range accepted {
		if subtle.ConstantTimeCompare([]byte(token), []byte(a)) == 1 {
			return true
		}
	}
	return false
}
