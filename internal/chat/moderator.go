package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// Moderator authorises moderation requests before handing them to the engine.
type Moderator struct {
	engine *Engine
	admins AdminChecker
	logger *zap.Logger
}

// NewModerator creates a moderator.
func NewModerator(engine *Engine, admins AdminChecker, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{engine: engine, admins: admins, logger: logger}
}

// Moderate applies action to id on behalf of actor. Only the administrator may moderate.
func (m *Moderator) Moderate(ctx context.Context, actor string, id int64, action models.ModerationAction) error {
	if !m.admins.IsAdministrator(actor) {
		m.logger.Warn("moderation denied", zap.String("email", actor), zap.Int64("message_id", id))
		return apperr.ErrForbidden
	}
	return m.engine.Moderate(ctx, id, action)
}
