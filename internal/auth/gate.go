package auth

import (
	"strings"
	"time"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// Session is a verified credential.
type Session struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gate verifies credentials and classifies callers.
type Gate struct {
	jwt        *JWTService
	adminEmail string
}

// NewGate creates an identity gate. An empty adminEmail means nobody is administrator.
func NewGate(jwt *JWTService, adminEmail string) *Gate {
	return &Gate{jwt: jwt, adminEmail: models.NormalizeEmail(adminEmail)}
}

// Issue signs a new credential for email.
func (g *Gate) Issue(email string) (string, Session, error) {
	token, claims, err := g.jwt.Generate(models.NormalizeEmail(email))
	if err != nil {
		return "", Session{}, err
	}
	return token, sessionFromClaims(claims), nil
}

// Authenticate verifies a credential. Missing, malformed and expired tokens all
// yield apperr.ErrUnauthenticated.
func (g *Gate) Authenticate(credential string) (Session, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Session{}, apperr.ErrUnauthenticated
	}
	claims, err := g.jwt.Validate(credential)
	if err != nil {
		return Session{}, apperr.ErrUnauthenticated
	}
	return sessionFromClaims(claims), nil
}

// IsAdministrator reports whether email is the configured administrator (case-insensitive).
func (g *Gate) IsAdministrator(email string) bool {
	if g.adminEmail == "" {
		return false
	}
	return models.NormalizeEmail(email) == g.adminEmail
}

// TokenLifetime is the fixed credential lifetime.
func (g *Gate) TokenLifetime() time.Duration {
	return g.jwt.Lifetime()
}

func sessionFromClaims(c *Claims) Session {
	s := Session{Email: c.Email}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}
