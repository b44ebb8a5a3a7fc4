package roster

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/auth"
	"github.com/aura-webinar/portal/pkg/response"
)

// AddRequest is the body of POST /admin/roster.
type AddRequest struct {
	Emails []string `json:"emails" binding:"required,min=1"`
}

// Handler handles admin roster endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a roster handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to load registered users")
		return
	}
	response.OK(c, gin.H{"users": users, "count": len(users)})
}

// Add handles POST /admin/roster.
func (h *Handler) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Validation("emails", "a non-empty list of emails is required"), "")
		return
	}
	res, err := h.svc.Import(c.Request.Context(), req.Emails)
	if err != nil {
		response.Error(c, err, "failed to import emails")
		return
	}
	response.OK(c, res)
}

// Upload handles POST /admin/roster/upload (multipart field "file").
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperr.Validation("file", "file is required"), "")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, apperr.Validation("file", "could not read upload"), "")
		return
	}
	defer f.Close()

	res, err := h.svc.Upload(c.Request.Context(), fh.Filename, f, auth.EmailFromContext(c))
	if err != nil {
		response.Error(c, err, "failed to import roster")
		return
	}
	if res.JobID != "" {
		response.Accepted(c, res)
		return
	}
	response.OK(c, res)
}

// Clear handles DELETE /admin/roster.
func (h *Handler) Clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context())
	if err != nil {
		response.Error(c, err, "failed to clear registered users")
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

// Delete handles DELETE /admin/users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperr.Validation("id", "invalid user id"), "")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err, "failed to delete registered user")
		return
	}
	response.OK(c, gin.H{"id": id})
}
