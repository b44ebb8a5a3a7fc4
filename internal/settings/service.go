package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// Store loads and saves the raw settings document.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
}

// Update is a partial settings change. Nil / unset fields keep their previous value.
type Update struct {
	SlowModeSeconds *int                `json:"slowModeSeconds"`
	IsLive          *bool               `json:"isLive"`
	ChatEnabled     *bool               `json:"chatEnabled"`
	WebinarStart    Optional[time.Time] `json:"webinarStart"`
	WelcomeMessage  Optional[string]    `json:"welcomeMessage"`
}

// Service is the settings store: defaults merged under the persisted document.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a settings service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Get returns the current settings. Store failures degrade to defaults.
func (s *Service) Get(ctx context.Context) models.Settings {
	cur, _, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("settings read failed, using defaults", zap.Error(err))
		return models.DefaultSettings()
	}
	return cur
}

// Public returns the participant-visible projection of the current settings.
func (s *Service) Public(ctx context.Context) models.PublicSettings {
	return s.Get(ctx).Public()
}

// Update validates and applies u over the persisted settings (read-merge-write, last writer wins).
// Nothing is written when validation fails.
func (s *Service) Update(ctx context.Context, u Update) (models.Settings, error) {
	if err := validate(u); err != nil {
		return models.Settings{}, err
	}
	cur, doc, err := s.load(ctx)
	if err != nil {
		return models.Settings{}, apperr.Store("load settings", err)
	}
	next := apply(cur, u)

	out, err := encode(doc, next)
	if err != nil {
		return models.Settings{}, apperr.Store("encode settings", err)
	}
	if err := s.store.Save(ctx, out); err != nil {
		return models.Settings{}, apperr.Store("save settings", err)
	}
	s.logger.Info("settings updated",
		zap.Int("slow_mode_seconds", next.SlowModeSeconds),
		zap.Bool("is_live", next.IsLive),
		zap.Bool("chat_enabled", next.ChatEnabled))
	return next, nil
}

func validate(u Update) error {
	if u.SlowModeSeconds != nil {
		v := *u.SlowModeSeconds
		if v < models.MinSlowModeSeconds || v > models.MaxSlowModeSeconds {
			return apperr.Validation("slowModeSeconds",
				"must be an integer between "+strconv.Itoa(models.MinSlowModeSeconds)+" and "+strconv.Itoa(models.MaxSlowModeSeconds))
		}
	}
	return nil
}

func apply(cur models.Settings, u Update) models.Settings {
	next := cur
	if u.SlowModeSeconds != nil {
		next.SlowModeSeconds = *u.SlowModeSeconds
	}
	if u.IsLive != nil {
		next.IsLive = *u.IsLive
	}
	if u.ChatEnabled != nil {
		next.ChatEnabled = *u.ChatEnabled
	}
	if u.WebinarStart.Set {
		next.WebinarStart = u.WebinarStart.Value
	}
	if u.WelcomeMessage.Set {
		next.WelcomeMessage = u.WelcomeMessage.Value
	}
	return next
}

// load decodes the stored document over the defaults one field at a time, so a field
// holding the wrong type falls back to its default alone. The raw document is returned
// as a field map so keys this version does not know survive a rewrite.
func (s *Service) load(ctx context.Context) (models.Settings, map[string]json.RawMessage, error) {
	cur := models.DefaultSettings()
	raw, err := s.store.Load(ctx)
	if err != nil {
		return cur, nil, err
	}
	doc := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return cur, doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.DefaultSettings(), nil, fmt.Errorf("decode settings: %w", err)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		next, err := decodeField(cur, k, doc[k])
		if err != nil {
			s.logger.Warn("settings field unreadable, using default", zap.String("field", k), zap.Error(err))
			continue
		}
		cur = next
	}
	return cur, doc, nil
}

// decodeField applies a single stored key over cur. cur is left untouched on error.
func decodeField(cur models.Settings, key string, value json.RawMessage) (models.Settings, error) {
	one, err := json.Marshal(map[string]json.RawMessage{key: value})
	if err != nil {
		return cur, err
	}
	next := cur
	next.WebinarStart = copyPtr(cur.WebinarStart)
	next.WelcomeMessage = copyPtr(cur.WelcomeMessage)
	if err := json.Unmarshal(one, &next); err != nil {
		return cur, err
	}
	return next, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func encode(doc map[string]json.RawMessage, st models.Settings) ([]byte, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	for k, v := range fields {
		doc[k] = v
	}
	return json.Marshal(doc)
}
