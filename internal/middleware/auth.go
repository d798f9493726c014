package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	AdminTokenCookie = "admin_token"
)

// RequireAdmin is the privilege gate in front of the admin routes. The token
// may come from the header or a cookie set by the blog's admin session. An
// empty token admits everyone (dev mode only).
func RequireAdmin(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(AdminTokenHeader)
		if provided == "" {
			provided, _ = c.Cookie(AdminTokenCookie)
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
