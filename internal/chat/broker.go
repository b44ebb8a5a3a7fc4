package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultChannel is the relay channel for chat changes.
const DefaultChannel = "portal:chat"

const relayTimeout = 5 * time.Second

// Relay carries changes between server instances.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, handler func(payload []byte)) (cancel func(), err error)
}

// Broker fans message changes out to subscribers. With a relay, changes are published to the
// relay only and delivered locally by the relay subscription, so every instance delivers once.
type Broker struct {
	relay   Relay
	channel string
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers map[uint64]func(Change)
	nextID   uint64
	cancel   func()
}

// NewBroker creates a broker. relay may be nil for a single instance.
func NewBroker(relay Relay, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		relay:    relay,
		channel:  DefaultChannel,
		logger:   logger,
		handlers: make(map[uint64]func(Change)),
	}
}

// Start subscribes to the relay. It is a no-op without one.
func (b *Broker) Start() error {
	if b.relay == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}
	cancel, err := b.relay.Subscribe(b.channel, b.receive)
	if err != nil {
		return err
	}
	b.cancel = cancel
	return nil
}

// Close cancels the relay subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Subscribe registers h and returns a function that removes it.
func (b *Broker) Subscribe(h func(Change)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ch to every subscriber, through the relay when one is running.
func (b *Broker) Publish(ctx context.Context, ch Change) {
	b.mu.RLock()
	relayed := b.relay != nil && b.cancel != nil
	b.mu.RUnlock()

	if relayed {
		data, err := json.Marshal(ch)
		if err == nil {
			pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayTimeout)
			err = b.relay.Publish(pctx, b.channel, data)
			cancel()
			if err == nil {
				return
			}
		}
		b.logger.Warn("chat relay publish failed, delivering locally",
			zap.Int64("message_id", ch.Message.ID), zap.Error(err))
	}
	b.dispatch(ch)
}

func (b *Broker) receive(payload []byte) {
	var ch Change
	if err := json.Unmarshal(payload, &ch); err != nil {
		b.logger.Warn("chat relay: bad payload", zap.Error(err))
		return
	}
	b.dispatch(ch)
}

func (b *Broker) dispatch(ch Change) {
	b.mu.RLock()
	handlers := make([]func(Change), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ch)
	}
}
