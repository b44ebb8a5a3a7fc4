package settings

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/pkg/response"
)

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	BroadcastAndPublish(event string, payload interface{})
}

// Handler handles settings HTTP endpoints.
type Handler struct {
	svc *Service
	hub Broadcaster
}

// NewHandler creates a settings handler. hub may be nil.
func NewHandler(svc *Service, hub Broadcaster) *Handler {
	return &Handler{svc: svc, hub: hub}
}

// Get handles GET /settings and GET /admin/settings.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, h.svc.Get(c.Request.Context()))
}

// GetPublic handles GET /settings/public.
func (h *Handler) GetPublic(c *gin.Context) {
	response.OK(c, h.svc.Public(c.Request.Context()))
}

// Update handles POST /admin/settings.
func (h *Handler) Update(c *gin.Context) {
	var req Update
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("body", err.Error()), "")
		return
	}
	st, err := h.svc.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err, "failed to save settings")
		return
	}
	if h.hub != nil {
		h.hub.BroadcastAndPublish("settings", st.Public())
	}
	response.OK(c, st)
}
