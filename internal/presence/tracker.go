// Package presence tracks which participants are currently watching.
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// DefaultWindow is how recent a ping must be for a participant to count as active.
const DefaultWindow = 15 * time.Second

// Store is the persistence used by Tracker.
type Store interface {
	Touch(ctx context.Context, email string, at time.Time) error
	Remove(ctx context.Context, email string) error
	CountSince(ctx context.Context, since time.Time) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tracker records heartbeats and counts active viewers.
type Tracker struct {
	store  Store
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewTracker creates a tracker. A non-positive window falls back to DefaultWindow.
func NewTracker(store Store, window time.Duration, logger *zap.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, window: window, now: time.Now, logger: logger}
}

// WithClock replaces the time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Window returns the activity window.
func (t *Tracker) Window() time.Duration { return t.window }

// Heartbeat marks email as active now.
func (t *Tracker) Heartbeat(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("email", "required")
	}
	if err := t.store.Touch(ctx, email, t.now().UTC()); err != nil {
		t.logger.Warn("presence heartbeat failed", zap.String("email", email), zap.Error(err))
		return apperr.Store("presence heartbeat", err)
	}
	return nil
}

// Disconnect removes email from the active set.
func (t *Tracker) Disconnect(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("email", "required")
	}
	if err := t.store.Remove(ctx, email); err != nil {
		t.logger.Warn("presence disconnect failed", zap.String("email", email), zap.Error(err))
		return apperr.Store("presence disconnect", err)
	}
	return nil
}

// CountActive returns the number of participants whose last ping is inside the window.
func (t *Tracker) CountActive(ctx context.Context) (int, error) {
	n, err := t.store.CountSince(ctx, t.now().UTC().Add(-t.window))
	if err != nil {
		return 0, apperr.Store("presence count", err)
	}
	return n, nil
}

// PurgeStale deletes rows idle for longer than olderThan.
func (t *Tracker) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < t.window {
		olderThan = t.window
	}
	n, err := t.store.DeleteBefore(ctx, t.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, apperr.Store("presence purge", err)
	}
	if n > 0 {
		t.logger.Info("purged stale presence rows", zap.Int64("count", n))
	}
	return n, nil
}
