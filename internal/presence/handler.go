package presence

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/pkg/response"
)

// PingRequest is the body of POST /session/ping.
type PingRequest struct {
	Disconnect bool `json:"disconnect"`
}

// Handler handles presence HTTP endpoints.
type Handler struct {
	tracker  *Tracker
	onChange func()
}

// NewHandler creates a presence handler. onChange, if set, runs after a successful ping.
func NewHandler(tracker *Tracker, onChange func()) *Handler {
	return &Handler{tracker: tracker, onChange: onChange}
}

// Ping handles POST /session/ping.
func (h *Handler) Ping(c *gin.Context) {
	var req PingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperr.Validation("body", err.Error()), "")
		return
	}
	email := auth.EmailFromContext(c)
	var err error
	if req.Disconnect {
		err = h.tracker.Disconnect(c.Request.Context(), email)
	} else {
		err = h.tracker.Heartbeat(c.Request.Context(), email)
	}
	if err != nil {
		response.Error(c, err, "failed to update presence")
		return
	}
	if h.onChange != nil {
		h.onChange()
	}
	response.OK(c, gin.H{"ok": true})
}

// Count handles GET /session/count.
func (h *Handler) Count(c *gin.Context) {
	n, err := h.tracker.CountActive(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to count viewers")
		return
	}
	response.OK(c, ViewerCount{Count: n})
}
