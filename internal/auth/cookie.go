package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieName carries the session credential.
const CookieName = "webinar_session"

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	Secure bool
}

// SetSessionCookie writes the credential cookie.
func (o CookieOptions) SetSessionCookie(c *gin.Context, token string, lifetime time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(lifetime.Seconds()), "/", "", o.Secure, true)
}

// ClearSessionCookie expires the credential cookie.
func (o CookieOptions) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", o.Secure, true)
}
