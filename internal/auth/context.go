package auth

import "github.com/gin-gonic/gin"

const (
	// ContextSession is the key for the verified Session in gin context.
	ContextSession = "session"
	// ContextIsAdmin is the key for the administrator flag in gin context.
	ContextIsAdmin = "is_admin"
)

// SetContext stores the request's identity.
func SetContext(c *gin.Context, s Session, isAdmin bool) {
	c.Set(ContextSession, s)
	c.Set(ContextIsAdmin, isAdmin)
}

// FromContext returns the session set by the session middleware.
func FromContext(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// EmailFromContext returns the caller's email or "".
func EmailFromContext(c *gin.Context) string {
	s, _ := FromContext(c)
	return s.Email
}

// IsAdminFromContext reports whether the caller was classified as administrator.
func IsAdminFromContext(c *gin.Context) bool {
	return c.GetBool(ContextIsAdmin)
}
