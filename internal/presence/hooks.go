package presence

import (
	"context"
	"time"
)

const hookTimeout = 5 * time.Second

// Hooks adapts the tracker to websocket lifecycle signals and nudges the broadcaster after each change.
type Hooks struct {
	Tracker     *Tracker
	Broadcaster *Broadcaster
}

// OnHeartbeat records a connect or heartbeat frame.
func (h Hooks) OnHeartbeat(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := h.Tracker.Heartbeat(ctx, email); err != nil {
		return
	}
	h.nudge()
}

// OnDisconnect removes the participant when their last socket closes.
func (h Hooks) OnDisconnect(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := h.Tracker.Disconnect(ctx, email); err != nil {
		return
	}
	h.nudge()
}

func (h Hooks) nudge() {
	if h.Broadcaster != nil {
		h.Broadcaster.Nudge()
	}
}
