package models

import "time"

// SettingsKey identifies the singleton settings row.
const SettingsKey = "webinar_settings"

// Slow mode bounds in seconds.
const (
	MinSlowModeSeconds = 0
	MaxSlowModeSeconds = 300
)

// Settings is the global webinar configuration.
type Settings struct {
	SlowModeSeconds int        `json:"slowModeSeconds"`
	IsLive          bool       `json:"isLive"`
	ChatEnabled     bool       `json:"chatEnabled"`
	WebinarStart    *time.Time `json:"webinarStart"`
	WelcomeMessage  *string    `json:"welcomeMessage"`
}

// DefaultSettings returns the values used for any field never persisted.
func DefaultSettings() Settings {
	return Settings{SlowModeSeconds: 10}
}

// PublicSettings is the projection any participant may read.
type PublicSettings struct {
	ChatEnabled    bool       `json:"chatEnabled"`
	WelcomeMessage *string    `json:"welcomeMessage"`
	IsLive         bool       `json:"isLive"`
	WebinarStart   *time.Time `json:"webinarStart"`
}

// Public returns the participant-visible subset of s.
func (s Settings) Public() PublicSettings {
	return PublicSettings{
		ChatEnabled:    s.ChatEnabled,
		WelcomeMessage: s.WelcomeMessage,
		IsLive:         s.IsLive,
		WebinarStart:   s.WebinarStart,
	}
}
