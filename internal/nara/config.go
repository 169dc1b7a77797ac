package nara

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// SettingsKey is where the monitoring configuration is persisted.
const SettingsKey = "nara_monitoring_config"

// Config controls what the monitor searches for and when.
type Config struct {
	Keywords            []string `json:"keywords"`
	Sources             []string `json:"sources"`
	SearchIntervalHours int      `json:"search_interval_hours"`
	ImmediateSearchDays int      `json:"immediate_search_days"`

	WorkHoursOnly  bool  `json:"work_hours_only"`
	WorkHoursStart int   `json:"work_hours_start"`
	WorkHoursEnd   int   `json:"work_hours_end"`
	WorkDays       []int `json:"work_days"` // 0 = Monday

	TelegramEnabled  bool   `json:"telegram_enabled"`
	TelegramChatID   string `json:"telegram_chat_id"`
	TelegramBotToken string `json:"telegram_bot_token,omitempty"`

	Headless              bool `json:"headless"`
	MaxRetries            int  `json:"max_retries"`
	TimeoutSeconds        int  `json:"timeout_seconds"`
	MaxConcurrentSearches int  `json:"max_concurrent_searches"`
	SearchDelaySeconds    int  `json:"search_delay_seconds"`
	CleanupOldDays        int  `json:"cleanup_old_days"`
}

// DefaultConfig returns the settings used before any are saved.
func DefaultConfig() Config {
	return Config{
		Keywords:              []string{"전기", "전력", "케이블", "변압기"},
		Sources:               []string{model.SourceNaraMarket, model.SourceKorail},
		SearchIntervalHours:   3,
		ImmediateSearchDays:   30,
		WorkHoursStart:        8,
		WorkHoursEnd:          19,
		WorkDays:              []int{0, 1, 2, 3, 4},
		TelegramEnabled:       false,
		Headless:              true,
		MaxRetries:            3,
		TimeoutSeconds:        30,
		MaxConcurrentSearches: 2,
		SearchDelaySeconds:    1,
		CleanupOldDays:        30,
	}
}

// Validate checks ranges and returns an INVALID_ARGUMENT error listing every
// offending field.
func (c Config) Validate() error {
	details := map[string]string{}

	keywords := 0
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) != "" {
			keywords++
		}
	}
	if keywords == 0 {
		details["keywords"] = "at least one keyword is required"
	}
	for _, s := range c.Sources {
		if s != model.SourceNaraMarket && s != model.SourceKorail {
			details["sources"] = "unknown source " + s
		}
	}
	if c.SearchIntervalHours < 1 || c.SearchIntervalHours > 24 {
		details["search_interval_hours"] = "must be between 1 and 24"
	}
	if c.ImmediateSearchDays < 1 || c.ImmediateSearchDays > 365 {
		details["immediate_search_days"] = "must be between 1 and 365"
	}
	if c.WorkHoursStart < 0 || c.WorkHoursStart > 23 {
		details["work_hours_start"] = "must be between 0 and 23"
	}
	if c.WorkHoursEnd < 0 || c.WorkHoursEnd > 23 {
		details["work_hours_end"] = "must be between 0 and 23"
	}
	if c.WorkHoursStart >= c.WorkHoursEnd {
		details["work_hours"] = "start must be before end"
	}
	for _, d := range c.WorkDays {
		if d < 0 || d > 6 {
			details["work_days"] = "days are 0 (Monday) to 6 (Sunday)"
		}
	}
	if c.TelegramEnabled && c.TelegramChatID == "" {
		details["telegram_chat_id"] = "required when telegram is enabled"
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		details["max_retries"] = "must be between 0 and 10"
	}
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 300 {
		details["timeout_seconds"] = "must be between 1 and 300"
	}
	if c.MaxConcurrentSearches < 1 || c.MaxConcurrentSearches > 10 {
		details["max_concurrent_searches"] = "must be between 1 and 10"
	}
	if c.SearchDelaySeconds < 0 || c.SearchDelaySeconds > 60 {
		details["search_delay_seconds"] = "must be between 0 and 60"
	}
	if c.CleanupOldDays < 1 {
		details["cleanup_old_days"] = "must be at least 1"
	}

	if len(details) > 0 {
		return &model.Error{
			Code:    model.CodeInvalidArgument,
			Message: "invalid monitoring configuration",
			Details: details,
		}
	}
	return nil
}

// IsWorkTime reports whether t falls on a work day within work hours.
func (c Config) IsWorkTime(t time.Time) bool {
	weekday := (int(t.Weekday()) + 6) % 7
	hour := t.Hour()
	return slices.Contains(c.WorkDays, weekday) && c.WorkHoursStart <= hour && hour < c.WorkHoursEnd
}

// Interval is the time between scheduled searches.
func (c Config) Interval() time.Duration {
	return time.Duration(c.SearchIntervalHours) * time.Hour
}

// RedactedToken replaces the bot token in configurations sent to clients.
const RedactedToken = "********"

// Redacted returns a copy safe to send to clients.
func (c Config) Redacted() Config {
	if c.TelegramBotToken != "" {
		c.TelegramBotToken = RedactedToken
	}
	return c
}

// LoadConfig returns the persisted configuration merged over the defaults.
func LoadConfig(ctx context.Context, q db.DBTX) (Config, error) {
	cfg := DefaultConfig()
	if _, err := store.GetJSONSetting(ctx, q, SettingsKey, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading monitoring config: %w", err)
	}
	return cfg, nil
}

// SaveConfig validates and persists cfg.
func SaveConfig(ctx context.Context, q db.DBTX, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := store.PutJSONSetting(ctx, q, SettingsKey, cfg); err != nil {
		return fmt.Errorf("saving monitoring config: %w", err)
	}
	return nil
}
