package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/pkg/response"
)

// Credential extracts the session token from the cookie or the Authorization header.
func Credential(c *gin.Context) string {
	if v, err := c.Cookie(auth.CookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// Session returns a middleware that authenticates every request through the gate and
// stores the session and admin flag in context. Invalid credentials clear the cookie.
func Session(gate *auth.Gate, cookies auth.CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := Credential(c)
		if cred == "" {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		s, err := gate.Authenticate(cred)
		if err != nil {
			cookies.ClearSessionCookie(c)
			response.Unauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}
		auth.SetContext(c, s, gate.IsAdministrator(s.Email))
		c.Next()
	}
}
