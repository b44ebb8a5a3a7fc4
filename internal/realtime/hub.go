package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// DefaultChannel is the relay channel for hub events.
	DefaultChannel = "portal:events"

	relayTimeout = 5 * time.Second
)

// Relay carries hub events between server instances.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, handler func(payload []byte)) (cancel func(), err error)
}

// Presence receives websocket lifecycle signals for viewer tracking.
type Presence interface {
	OnHeartbeat(email string)
	OnDisconnect(email string)
}

// relayEnvelope is the message published to the relay for cross-instance broadcast.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// Hub maintains the set of connected clients and broadcasts events to them.
// With a relay, BroadcastAndPublish also reaches clients connected to other instances.
type Hub struct {
	clients  map[string]*Client
	byEmail  map[string]int
	mu       sync.RWMutex
	logger   *zap.Logger
	relay    Relay
	channel  string
	origin   string
	presence Presence

	// subMu guards the relay subscription. It is never held together with mu,
	// so a slow Subscribe does not stall delivery.
	subMu  sync.Mutex
	cancel func()
	closed bool
}

// NewHub creates a new WebSocket hub. relay may be nil.
func NewHub(logger *zap.Logger, relay Relay) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		byEmail: make(map[string]int),
		logger:  logger,
		relay:   relay,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
	}
}

// SetPresence sets the receiver of connect, heartbeat and disconnect signals.
func (h *Hub) SetPresence(p Presence) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presence = p
}

// Register adds a client. The relay subscription starts with the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.byEmail[c.Email]++
	first := len(h.clients) == 1
	presence := h.presence
	h.mu.Unlock()

	if first {
		h.subscribe()
	}
	if presence != nil {
		presence.OnHeartbeat(c.Email)
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("email", c.Email))
}

// Unregister removes a client. The participant is reported as gone when their last socket closes,
// and the relay subscription is cancelled with the last client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.byEmail[c.Email]--
	last := h.byEmail[c.Email] <= 0
	if last {
		delete(h.byEmail, c.Email)
	}
	empty := len(h.clients) == 0
	presence := h.presence
	h.mu.Unlock()

	if empty {
		h.unsubscribe()
	}
	if presence != nil && last {
		presence.OnDisconnect(c.Email)
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("email", c.Email))
}

// Heartbeat records a client heartbeat frame.
func (h *Hub) Heartbeat(c *Client) {
	h.mu.RLock()
	presence := h.presence
	h.mu.RUnlock()
	if presence != nil {
		presence.OnHeartbeat(c.Email)
	}
}

// Broadcast sends an event to all local clients.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("hub encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(WSMessage{Event: event, Data: data})
}

// BroadcastAndPublish sends to local clients and publishes to the relay for other instances.
func (h *Hub) BroadcastAndPublish(event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("hub encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(WSMessage{Event: event, Data: data})
	if h.relay == nil {
		return
	}
	body, err := json.Marshal(relayEnvelope{Origin: h.origin, Event: event, Data: data, At: time.Now().Unix()})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, h.channel, body); err != nil {
		h.logger.Warn("hub relay publish failed", zap.String("event", event), zap.Error(err))
	}
}

// ClientCount returns the number of local websocket connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close cancels the relay subscription. Later clients are served locally only.
func (h *Hub) Close() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// subscribe starts the relay subscription if clients are connected and none is active.
func (h *Hub) subscribe() {
	if h.relay == nil {
		return
	}
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.closed || h.cancel != nil {
		return
	}
	cancel, err := h.relay.Subscribe(h.channel, h.receive)
	if err != nil {
		h.logger.Warn("hub relay subscribe failed", zap.Error(err))
		return
	}
	if h.ClientCount() == 0 {
		cancel()
		return
	}
	h.cancel = cancel
}

// unsubscribe ends the relay subscription once no clients remain.
func (h *Hub) unsubscribe() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.cancel == nil || h.ClientCount() > 0 {
		return
	}
	h.cancel()
	h.cancel = nil
}

func (h *Hub) receive(payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	if env.Origin == h.origin {
		return
	}
	h.deliver(WSMessage{Event: env.Event, Data: env.Data})
}

func (h *Hub) deliver(msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
