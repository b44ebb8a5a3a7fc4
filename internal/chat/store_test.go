package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// memStore mirrors Repository semantics in memory. clk plays the database clock:
// it stamps created_at and measures the slow mode window.
type memStore struct {
	clk    *clock
	mu     sync.Mutex
	rows   []models.ChatMessage
	nextID int64
	fail   error
}

func (m *memStore) visible() []models.ChatMessage {
	var out []models.ChatMessage
	for _, r := range m.rows {
		if !r.IsDeleted {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *memStore) find(id int64) int {
	for i, r := range m.rows {
		if r.ID == id && !r.IsDeleted {
			return i
		}
	}
	return -1
}

func (m *memStore) ListRecent(_ context.Context, limit int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v := m.visible()
	if len(v) > limit {
		v = v[len(v)-limit:]
	}
	return v, nil
}

func (m *memStore) Pinned(_ context.Context) (*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, r := range m.visible() {
		if r.IsPinned {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) LastSent(_ context.Context, email string, window time.Duration) (*time.Time, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, time.Time{}, m.fail
	}
	now := m.clk.Now()
	since := now.Add(-window)
	var last *time.Time
	for _, r := range m.visible() {
		if r.Email == email && r.CreatedAt.After(since) {
			at := r.CreatedAt
			last = &at
		}
	}
	return last, now, nil
}

func (m *memStore) Create(_ context.Context, email, content string) (models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return models.ChatMessage{}, m.fail
	}
	m.nextID++
	msg := models.ChatMessage{ID: m.nextID, Email: email, Content: content, CreatedAt: m.clk.Now()}
	m.rows = append(m.rows, msg)
	return msg, nil
}

func (m *memStore) Pin(_ context.Context, id int64) (models.ChatMessage, []models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return models.ChatMessage{}, nil, apperr.ErrNotFound
	}
	var previous []models.ChatMessage
	for j := range m.rows {
		if j != i && m.rows[j].IsPinned {
			m.rows[j].IsPinned = false
			previous = append(previous, m.rows[j])
		}
	}
	m.rows[i].IsPinned = true
	return m.rows[i], previous, nil
}

func (m *memStore) Unpin(_ context.Context, id int64) (models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return models.ChatMessage{}, apperr.ErrNotFound
	}
	m.rows[i].IsPinned = false
	return m.rows[i], nil
}

func (m *memStore) SoftDelete(_ context.Context, id int64) (models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.find(id)
	if i < 0 {
		return models.ChatMessage{}, apperr.ErrNotFound
	}
	m.rows[i].IsDeleted = true
	m.rows[i].IsPinned = false
	return m.rows[i], nil
}

func (m *memStore) pinnedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.IsPinned {
			n++
		}
	}
	return n
}

type fixedSettings struct {
	slow int
}

func (f fixedSettings) Get(context.Context) models.Settings {
	s := models.DefaultSettings()
	s.SlowModeSeconds = f.slow
	return s
}

type adminSet map[string]bool

func (a adminSet) IsAdministrator(email string) bool { return a[email] }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = epoch.Add(d)
	c.mu.Unlock()
}

var epoch = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

const adminEmail = "host@example.com"

func newTestEngine(slow int) (*Engine, *memStore, *clock) {
	clk := &clock{now: epoch}
	store := &memStore{clk: clk}
	e := NewEngine(store, fixedSettings{slow: slow}, adminSet{adminEmail: true}, nil, nil)
	return e, store, clk
}

// gatedStore holds the slow mode lookup of one sender until release is closed.
type gatedStore struct {
	*memStore
	email   string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) LastSent(ctx context.Context, email string, window time.Duration) (*time.Time, time.Time, error) {
	if email == g.email {
		close(g.entered)
		<-g.release
	}
	return g.memStore.LastSent(ctx, email, window)
}
