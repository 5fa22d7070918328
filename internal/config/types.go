// Package config loads and hot-reloads the daemon configuration. Files may
// be JSON or YAML; YAML is coerced to JSON so both formats go through the
// same strict decoder.
package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage configures the schedule database. If omitted, an on-disk
	// sqlite database at the default path is used.
	Storage *StorageConfig `json:"storage,omitempty"`

	Engine EngineConfig `json:"engine"`

	// Apps configures application discovery (desktop entry directories).
	Apps AppsConfig `json:"apps,omitempty"`

	// Notifier controls the fallback notification pipeline. If the whole
	// section is omitted, the notifier defaults to enabled.
	Notifier *NotifierConfig `json:"notifier,omitempty"`

	Janitor JanitorConfig `json:"janitor,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./appsched.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// EngineConfig controls schedule admission and restore behavior.
type EngineConfig struct {
	// FireMissedOnRestore executes schedules whose time passed while the
	// daemon was down, instead of leaving them pending for inspection.
	FireMissedOnRestore bool `json:"fire_missed_on_restore"`
}

// AppsConfig controls application discovery.
//
// Dirs, when set, replaces the XDG default search path. CacheTTL bounds how
// stale the discovered application list may be.
type AppsConfig struct {
	Dirs     []string `json:"dirs,omitempty"`
	CacheTTL string   `json:"cache_ttl,omitempty"` // Go duration string
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`

	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig enables the optional Telegram delivery surface.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// JanitorConfig controls periodic maintenance.
type JanitorConfig struct {
	Enabled bool `json:"enabled"`

	// LogRetention prunes execution log rows older than this. "0s" or
	// omitted disables pruning.
	LogRetention string `json:"log_retention,omitempty"` // Go duration string

	// PruneSpec is a cron expression for the prune job. Defaults to
	// hourly ("@hourly") when empty.
	PruneSpec string `json:"prune_spec,omitempty"`

	// SweepSpec is a cron expression for the missed-schedule report job.
	// Defaults to every 10 minutes when empty.
	SweepSpec string `json:"sweep_spec,omitempty"`
}

// NotifierOrDefault returns the notifier section, substituting runtime
// defaults when the section is omitted.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c != nil && c.Notifier != nil {
		return *c.Notifier
	}
	return NotifierConfig{
		Enabled:       true,
		Workers:       1,
		QueueSize:     64,
		RatePerSec:    2,
		RetryMax:      3,
		RetryBase:     "500ms",
		RetryMaxDelay: "10s",
	}
}

// StorageOrDefault returns the storage section with defaults filled in.
func (c *Config) StorageOrDefault() StorageConfig {
	if c != nil && c.Storage != nil {
		return *c.Storage
	}
	return StorageConfig{Driver: "sqlite", Path: "./appsched.db"}
}
