package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/portal/internal/models"
)

// loopRelay delivers every publish to all subscribers synchronously, like a shared Redis channel.
type loopRelay struct {
	mu        sync.Mutex
	subs      map[int]func([]byte)
	next      int
	fail      error
	publishes int
}

func newLoopRelay() *loopRelay { return &loopRelay{subs: make(map[int]func([]byte))} }

func (l *loopRelay) Publish(_ context.Context, _ string, payload []byte) error {
	l.mu.Lock()
	l.publishes++
	if l.fail != nil {
		l.mu.Unlock()
		return l.fail
	}
	subs := make([]func([]byte), 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	l.mu.Unlock()
	for _, s := range subs {
		s(payload)
	}
	return nil
}

func (l *loopRelay) Subscribe(_ string, h func([]byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	l.subs[id] = h
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}, nil
}

func TestBrokerLocalDelivery(t *testing.T) {
	b := NewBroker(nil, nil)
	require.NoError(t, b.Start())

	var got []int64
	unsubscribe := b.Subscribe(func(c Change) { got = append(got, c.Message.ID) })
	b.Publish(context.Background(), Change{Kind: ChangeInsert, Message: models.ChatMessage{ID: 1}})
	unsubscribe()
	unsubscribe()
	b.Publish(context.Background(), Change{Kind: ChangeInsert, Message: models.ChatMessage{ID: 2}})

	assert.Equal(t, []int64{1}, got)
}

func TestBrokerRelayDeliversOncePerInstance(t *testing.T) {
	relay := newLoopRelay()
	a := NewBroker(relay, nil)
	b := NewBroker(relay, nil)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	defer a.Close()
	defer b.Close()

	var onA, onB []Change
	a.Subscribe(func(c Change) { onA = append(onA, c) })
	b.Subscribe(func(c Change) { onB = append(onB, c) })

	a.Publish(context.Background(), Change{Kind: ChangeUpdate, Message: models.ChatMessage{ID: 7, Content: "hi", IsPinned: true}})

	require.Len(t, onA, 1)
	require.Len(t, onB, 1)
	assert.Equal(t, ChangeUpdate, onB[0].Kind)
	assert.Equal(t, int64(7), onB[0].Message.ID)
	assert.True(t, onB[0].Message.IsPinned)
}

func TestBrokerFallsBackToLocalOnRelayError(t *testing.T) {
	relay := newLoopRelay()
	relay.fail = errors.New("redis down")
	b := NewBroker(relay, nil)
	require.NoError(t, b.Start())

	var got int
	b.Subscribe(func(Change) { got++ })
	b.Publish(context.Background(), Change{Kind: ChangeInsert})
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, relay.publishes)
}
