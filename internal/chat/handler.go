package chat

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/internal/models"
	"github.com/aura-webinar/portal/pkg/response"
)

// SubmitRequest is the body of POST /chat.
type SubmitRequest struct {
	Content string `json:"content"`
}

// ModerateRequest is the body of POST /chat/moderate.
type ModerateRequest struct {
	MessageID int64                   `json:"messageId" binding:"required"`
	Action    models.ModerationAction `json:"action" binding:"required"`
}

// History is the GET /chat payload.
type History struct {
	Messages []models.ChatMessage `json:"messages"`
	Pinned   *models.ChatMessage  `json:"pinned"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	engine    *Engine
	moderator *Moderator
}

// NewHandler creates a chat handler.
func NewHandler(engine *Engine, moderator *Moderator) *Handler {
	return &Handler{engine: engine, moderator: moderator}
}

// List handles GET /chat.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, err := h.engine.List(ctx)
	if err != nil {
		response.Error(c, err, "failed to load chat")
		return
	}
	pinned, err := h.engine.Pinned(ctx)
	if err != nil {
		response.Error(c, err, "failed to load chat")
		return
	}
	response.OK(c, History{Messages: msgs, Pinned: pinned})
}

// Submit handles POST /chat.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("body", err.Error()), "")
		return
	}
	msg, err := h.engine.Submit(c.Request.Context(), auth.EmailFromContext(c), req.Content)
	if err != nil {
		response.Error(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// Moderate handles POST /chat/moderate.
func (h *Handler) Moderate(c *gin.Context) {
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("body", err.Error()), "")
		return
	}
	if err := h.moderator.Moderate(c.Request.Context(), auth.EmailFromContext(c), req.MessageID, req.Action); err != nil {
		response.Error(c, err, "failed to moderate message")
		return
	}
	response.OK(c, gin.H{"messageId": req.MessageID, "action": req.Action})
}
