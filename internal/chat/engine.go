// Package chat implements the moderated chat: history, slow mode, pinning and change fan-out.
package chat

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

const (
	// MaxContentLength is the maximum message length in characters after trimming.
	MaxContentLength = 500
	// DefaultHistoryLimit is how many recent messages List returns.
	DefaultHistoryLimit = 100
)

// Store is the persistence used by Engine.
type Store interface {
	ListRecent(ctx context.Context, limit int) ([]models.ChatMessage, error)
	Pinned(ctx context.Context) (*models.ChatMessage, error)
	// LastSent returns the sender's newest visible message time inside window (nil if none)
	// and the store clock the window was measured against.
	LastSent(ctx context.Context, email string, window time.Duration) (*time.Time, time.Time, error)
	// Create stores a message; the store assigns created_at.
	Create(ctx context.Context, email, content string) (models.ChatMessage, error)
	Pin(ctx context.Context, id int64) (models.ChatMessage, []models.ChatMessage, error)
	Unpin(ctx context.Context, id int64) (models.ChatMessage, error)
	SoftDelete(ctx context.Context, id int64) (models.ChatMessage, error)
}

// SettingsReader supplies the current slow mode.
type SettingsReader interface {
	Get(ctx context.Context) models.Settings
}

// AdminChecker classifies senders.
type AdminChecker interface {
	IsAdministrator(email string) bool
}

// Engine is the chat service.
type Engine struct {
	store        Store
	settings     SettingsReader
	admins       AdminChecker
	broker       *Broker
	historyLimit int
	logger       *zap.Logger
}

// NewEngine creates a chat engine. broker may be nil for a local-only broker.
func NewEngine(store Store, settings SettingsReader, admins AdminChecker, broker *Broker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if broker == nil {
		broker = NewBroker(nil, logger)
	}
	return &Engine{
		store:        store,
		settings:     settings,
		admins:       admins,
		broker:       broker,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}
}

// WithHistoryLimit overrides how many messages List returns.
func (e *Engine) WithHistoryLimit(n int) *Engine {
	if n > 0 {
		e.historyLimit = n
	}
	return e
}

// List returns the most recent visible messages, oldest first.
func (e *Engine) List(ctx context.Context) ([]models.ChatMessage, error) {
	list, err := e.store.ListRecent(ctx, e.historyLimit)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	return list, nil
}

// Pinned returns the pinned message or nil.
func (e *Engine) Pinned(ctx context.Context) (*models.ChatMessage, error) {
	m, err := e.store.Pinned(ctx)
	if err != nil {
		return nil, apperr.Store("pinned message", err)
	}
	return m, nil
}

// Submit validates, rate limits and stores a message from email.
func (e *Engine) Submit(ctx context.Context, email, content string) (models.ChatMessage, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return models.ChatMessage{}, apperr.ErrUnauthenticated
	}
	// Length is counted on the composed form, the same form the database checks.
	content = norm.NFC.String(strings.TrimSpace(content))
	switch n := utf8.RuneCountInString(content); {
	case n == 0:
		return models.ChatMessage{}, apperr.Validation("content", "message must not be empty")
	case n > MaxContentLength:
		return models.ChatMessage{}, apperr.Validation("content", "message must be at most 500 characters")
	}

	if !e.admins.IsAdministrator(email) {
		if err := e.checkSlowMode(ctx, email); err != nil {
			return models.ChatMessage{}, err
		}
	}

	msg, err := e.store.Create(ctx, email, content)
	if err != nil {
		e.logger.Error("chat message insert failed", zap.String("email", email), zap.Error(err))
		return models.ChatMessage{}, apperr.Store("create message", err)
	}
	e.broker.Publish(ctx, Change{Kind: ChangeInsert, Message: msg})
	return msg, nil
}

// checkSlowMode measures the window on the store clock, the same clock that stamps created_at.
func (e *Engine) checkSlowMode(ctx context.Context, email string) error {
	slow := e.settings.Get(ctx).SlowModeSeconds
	if slow <= 0 {
		return nil
	}
	window := time.Duration(slow) * time.Second
	last, now, err := e.store.LastSent(ctx, email, window)
	if err != nil {
		return apperr.Store("slow mode lookup", err)
	}
	if last == nil {
		return nil
	}
	if wait := waitSeconds(*last, window, now); wait > 0 {
		return &apperr.RateLimitError{WaitSeconds: wait}
	}
	return nil
}

// waitSeconds is ceil((last + window - now) / 1s).
func waitSeconds(last time.Time, window time.Duration, now time.Time) int {
	remaining := last.Add(window).Sub(now)
	return int(math.Ceil(remaining.Seconds()))
}

// Moderate applies action to message id and publishes every affected row.
func (e *Engine) Moderate(ctx context.Context, id int64, action models.ModerationAction) error {
	if !action.Valid() {
		return apperr.Validation("action", "must be one of pin, unpin, delete")
	}
	if id <= 0 {
		return apperr.Validation("messageId", "must be a positive integer")
	}

	var changed []models.ChatMessage
	switch action {
	case models.ActionPin:
		pinned, previous, err := e.store.Pin(ctx, id)
		if err != nil {
			return apperr.Store("pin message", err)
		}
		changed = append(previous, pinned)
	case models.ActionUnpin:
		m, err := e.store.Unpin(ctx, id)
		if err != nil {
			return apperr.Store("unpin message", err)
		}
		changed = append(changed, m)
	case models.ActionDelete:
		m, err := e.store.SoftDelete(ctx, id)
		if err != nil {
			return apperr.Store("delete message", err)
		}
		changed = append(changed, m)
	}

	e.logger.Info("chat message moderated", zap.Int64("message_id", id), zap.String("action", string(action)))
	for _, m := range changed {
		e.broker.Publish(ctx, Change{Kind: ChangeUpdate, Message: m})
	}
	return nil
}

// OnMessageChange registers h for inserts and updates and returns an unsubscribe function.
func (e *Engine) OnMessageChange(h func(Change)) func() {
	return e.broker.Subscribe(h)
}
