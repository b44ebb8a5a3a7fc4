package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/schedule"
)

// EventViewerCount is the websocket event carrying the active viewer count.
const EventViewerCount = "viewer_count"

// Publisher pushes an event to connected clients.
type Publisher interface {
	Broadcast(event string, payload interface{})
}

// ViewerCount is the viewer_count payload.
type ViewerCount struct {
	Count int `json:"count"`
}

// Broadcaster periodically pushes the viewer count when it changes and purges stale rows.
type Broadcaster struct {
	tracker  *Tracker
	pub      Publisher
	logger   *zap.Logger
	purgeAge time.Duration

	count *schedule.Task
	purge *schedule.Task

	mu   sync.Mutex
	last int
	sent bool
}

// BroadcasterConfig controls the broadcaster intervals.
type BroadcasterConfig struct {
	Interval      time.Duration
	PurgeInterval time.Duration
	PurgeAfter    time.Duration
}

// NewBroadcaster creates the count and purge tasks. Call Start to run them.
func NewBroadcaster(tracker *Tracker, pub Publisher, cfg BroadcasterConfig, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = 10 * time.Minute
	}
	if cfg.PurgeAfter <= 0 {
		cfg.PurgeAfter = time.Hour
	}
	b := &Broadcaster{tracker: tracker, pub: pub, logger: logger, purgeAge: cfg.PurgeAfter}
	b.count = schedule.NewTask("viewer_count", cfg.Interval, b.PushCount, logger)
	b.purge = schedule.NewTask("presence_purge", cfg.PurgeInterval, b.purgeStale, logger)
	return b
}

// Start runs both tasks until ctx is cancelled or Stop is called.
func (b *Broadcaster) Start(ctx context.Context) {
	b.count.Start(ctx)
	b.purge.Start(ctx)
}

// Stop halts both tasks.
func (b *Broadcaster) Stop() {
	b.count.Stop()
	b.purge.Stop()
}

// Nudge schedules an early count push, e.g. after a connect or disconnect.
func (b *Broadcaster) Nudge() {
	b.count.Trigger()
}

// PushCount computes the active count and broadcasts it if it differs from the last push.
func (b *Broadcaster) PushCount(ctx context.Context) {
	n, err := b.tracker.CountActive(ctx)
	if err != nil {
		b.logger.Warn("viewer count failed", zap.Error(err))
		return
	}
	b.mu.Lock()
	changed := !b.sent || n != b.last
	b.last, b.sent = n, true
	b.mu.Unlock()
	if changed && b.pub != nil {
		b.pub.Broadcast(EventViewerCount, ViewerCount{Count: n})
	}
}

func (b *Broadcaster) purgeStale(ctx context.Context) {
	if _, err := b.tracker.PurgeStale(ctx, b.purgeAge); err != nil {
		b.logger.Warn("presence purge failed", zap.Error(err))
	}
}
