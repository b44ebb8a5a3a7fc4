// Package schedule runs fixed-interval background work with explicit start/stop.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// TickerFactory creates a Ticker for an interval.
type TickerFactory func(time.Duration) Ticker

// NewTimeTicker is the default TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Task runs fn every interval until stopped. Trigger forces an early run.
type Task struct {
	name      string
	interval  time.Duration
	fn        func(ctx context.Context)
	logger    *zap.Logger
	newTicker TickerFactory

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// NewTask creates a repeating task. A non-positive interval defaults to 30s.
func NewTask(name string, interval time.Duration, fn func(ctx context.Context), logger *zap.Logger) *Task {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Task{
		name:      name,
		interval:  interval,
		fn:        fn,
		logger:    logger,
		newTicker: NewTimeTicker,
		trigger:   make(chan struct{}, 1),
	}
}

// WithTicker replaces the ticker factory. Must be called before Start.
func (t *Task) WithTicker(f TickerFactory) *Task {
	t.newTicker = f
	return t
}

// Start begins the loop. Starting a running task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(runCtx, t.done)
	t.logger.Info("task started", zap.String("task", t.name), zap.Duration("interval", t.interval))
}

// Stop cancels the loop and waits for the current run to finish.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	<-t.done
	t.logger.Info("task stopped", zap.String("task", t.name))
}

// Trigger requests a run before the next tick. Extra triggers coalesce.
func (t *Task) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := t.newTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.trigger:
			t.fn(ctx)
		case <-ticker.C():
			t.fn(ctx)
		}
	}
}
