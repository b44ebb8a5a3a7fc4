package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials verifies the administrator password.
type AdminCredentials struct {
	hash []byte
}

// NewAdminCredentials prefers a bcrypt hash; a plain password is hashed once at startup.
// Both empty disables administrator login.
func NewAdminCredentials(plain, hash string) (*AdminCredentials, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &AdminCredentials{hash: []byte(hash)}, nil
	}
	if plain == "" {
		return &AdminCredentials{}, nil
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AdminCredentials{hash: b}, nil
}

// Enabled reports whether an administrator password is configured.
func (a *AdminCredentials) Enabled() bool {
	return a != nil && len(a.hash) > 0
}

// Verify compares password with the configured hash.
func (a *AdminCredentials) Verify(password string) bool {
	if !a.Enabled() || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}
