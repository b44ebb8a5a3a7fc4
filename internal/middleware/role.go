package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/pkg/response"
)

// RequireAdmin allows only the administrator. Must run after Session.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.FromContext(c); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !auth.IsAdminFromContext(c) {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
