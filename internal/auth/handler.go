package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/response"
)

// Allowlist answers whether an email may log in.
type Allowlist interface {
	IsRegistered(ctx context.Context, email string) (bool, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login. The token is also set as a cookie.
type LoginResponse struct {
	Token      string `json:"token,omitempty"`
	Email      string `json:"email,omitempty"`
	IsAdmin    bool   `json:"isAdmin"`
	RedirectTo string `json:"redirectTo,omitempty"`

	RequiresPassword bool `json:"requiresPassword,omitempty"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	gate      *Gate
	admin     *AdminCredentials
	allowlist Allowlist
	cookies   CookieOptions
	logger    *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(gate *Gate, admin *AdminCredentials, allowlist Allowlist, cookies CookieOptions, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, admin: admin, allowlist: allowlist, cookies: cookies, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email is required")
		return
	}
	email := models.NormalizeEmail(req.Email)
	if email == "" {
		response.BadRequest(c, "email is required")
		return
	}

	if h.gate.IsAdministrator(email) {
		if !h.admin.Enabled() {
			response.Unauthorized(c, "administrator login is disabled")
			return
		}
		if req.Password == "" {
			response.OK(c, LoginResponse{RequiresPassword: true, IsAdmin: true})
			return
		}
		if !h.admin.Verify(req.Password) {
			h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
			response.Unauthorized(c, "invalid password")
			return
		}
		h.issue(c, email, true, "/admin")
		return
	}

	ok, err := h.allowlist.IsRegistered(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("allowlist lookup", zap.Error(err))
		response.Internal(c, "login failed, try again")
		return
	}
	if !ok {
		response.Unauthorized(c, "this email is not registered for the webinar")
		return
	}
	h.issue(c, email, false, "/webinar")
}

func (h *Handler) issue(c *gin.Context, email string, isAdmin bool, redirect string) {
	token, _, err := h.gate.Issue(email)
	if err != nil {
		h.logger.Error("sign session token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	h.cookies.SetSessionCookie(c, token, h.gate.TokenLifetime())
	response.OK(c, LoginResponse{Token: token, Email: email, IsAdmin: isAdmin, RedirectTo: redirect})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.cookies.ClearSessionCookie(c)
	response.OK(c, gin.H{"logged_out": true})
}

// Me handles GET /auth/me (session required).
func (h *Handler) Me(c *gin.Context) {
	s, ok := FromContext(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	response.OK(c, gin.H{
		"email":      s.Email,
		"is_admin":   IsAdminFromContext(c),
		"expires_at": s.ExpiresAt,
	})
}
