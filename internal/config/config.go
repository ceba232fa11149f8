package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Schedule modes. See engine.Mode.
const (
	ModeHourly = "hourly" // one minute-only recurring trigger per selected mark
	ModeDaily  = "daily"  // one trigger per hour×minute, bounded by SlotBudget
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN"`                 // empty disables the Telegram settings UI
	OwnerChatID int64  `envconfig:"OWNER_CHAT_ID" default:"0"` // 0: first /start claims ownership

	DBPath       string `envconfig:"DB_PATH" default:"./data/timesignal.db"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"sqlite"` // sqlite|file
	StoreFile    string `envconfig:"STORE_FILE" default:"./data/timesignal.json"`
	SoundDir     string `envconfig:"SOUND_DIR" default:"./sounds"`

	ScheduleMode string        `envconfig:"SCHEDULE_MODE" default:"hourly"` // hourly|daily
	SlotBudget   int           `envconfig:"SLOT_BUDGET" default:"64"`
	Debounce     time.Duration `envconfig:"DEBOUNCE" default:"300ms"`
	TZName       string        `envconfig:"TZ_NAME" default:"Local"`

	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	AutoGrant    bool          `envconfig:"AUTO_GRANT" default:"true"`
	SoundEnabled bool          `envconfig:"SOUND_ENABLED" default:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the rest of the app cannot work with.
func (c Config) Validate() error {
	switch c.ScheduleMode {
	case ModeHourly, ModeDaily:
	default:
		return fmt.Errorf("SCHEDULE_MODE: unknown mode %q", c.ScheduleMode)
	}
	switch c.StoreBackend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	if c.SlotBudget <= 0 {
		return fmt.Errorf("SLOT_BUDGET: must be positive, got %d", c.SlotBudget)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("DEBOUNCE: must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL: must be positive")
	}
	return nil
}
