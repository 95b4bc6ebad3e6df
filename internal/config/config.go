package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DefaultPath is used when INSPIRA_CONFIG is not set
const DefaultPath = "config.json"

// Duration is a time.Duration read from strings like "30s" or "15m"
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the application configuration
type Config struct {
	TelegramToken string  `json:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	SuperuserIDs  []int64 `json:"superuser_ids" env:"SUPERUSER_IDS" envSeparator:","`

	Version string `json:"version" env:"INSPIRA_VERSION"`
	LogEnv  string `json:"log_env" env:"LOG_ENV"`

	UseMockDB bool `json:"use_mock_db" env:"USE_MOCK_DB"`

	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	ClickHouse ClickHouseConfig `json:"clickhouse"`

	TraceFile string `json:"trace_file" env:"TRACE_FILE"`

	Ticket    TicketConfig    `json:"ticket"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Lessons   LessonsConfig   `json:"lessons"`
	Broadcast BroadcastConfig `json:"broadcast"`
	HTTP      HTTPConfig      `json:"http"`
	Links     LinksConfig     `json:"links"`

	SessionTTL Duration `json:"session_ttl" env:"SESSION_TTL"`

	// RestartOnFailure re-executes the process when the bot loop fails.
	// On by default, set it to false to exit instead.
	RestartOnFailure bool `json:"restart_on_failure" env:"RESTART_ON_FAILURE"`

	// DigestHour is the local hour of the daily admin digest, -1 disables it
	DigestHour int `json:"digest_hour" env:"DIGEST_HOUR"`
}

// DatabaseConfig selects the relational store
type DatabaseConfig struct {
	Driver string `json:"driver" env:"DB_DRIVER"` // sqlite or postgres
	DSN    string `json:"dsn" env:"DB_DSN"`
}

// RedisConfig enables shared rate limiter state when URL is set
type RedisConfig struct {
	URL    string `json:"url" env:"REDIS_URL"`
	Prefix string `json:"prefix" env:"REDIS_PREFIX"`
}

// ClickHouseConfig enables the ClickHouse trace sink when Host is set
type ClickHouseConfig struct {
	Host     string `json:"host" env:"CLICKHOUSE_HOST"`
	Port     int    `json:"port" env:"CLICKHOUSE_PORT"`
	Database string `json:"database" env:"CLICKHOUSE_DATABASE"`
	User     string `json:"user" env:"CLICKHOUSE_USER"`
	Password string `json:"password" env:"CLICKHOUSE_PASSWORD"`
	UseTLS   bool   `json:"use_tls" env:"CLICKHOUSE_USE_TLS"`
}

// TicketConfig locates the ticket templates and font
type TicketConfig struct {
	TemplateDir string `json:"template_dir" env:"TICKET_TEMPLATE_DIR"`
	FontPath    string `json:"font_path" env:"TICKET_FONT_PATH"`
}

// RateLimitConfig holds the flood protection thresholds
type RateLimitConfig struct {
	Window       Duration `json:"window" env:"RATE_LIMIT_WINDOW"`
	RequestLimit int      `json:"request_limit" env:"RATE_LIMIT_REQUESTS"`
	BanThreshold int      `json:"ban_threshold" env:"RATE_LIMIT_BAN_THRESHOLD"`
	TempBlock    Duration `json:"temp_block" env:"RATE_LIMIT_TEMP_BLOCK"`
}

// LessonsConfig describes the class schedule
type LessonsConfig struct {
	Capacity   int      `json:"capacity" env:"LESSON_CAPACITY"`
	Times      []string `json:"times" env:"LESSON_TIMES" envSeparator:","`
	Activities []string `json:"activities" env:"LESSON_ACTIVITIES" envSeparator:","`
	Weeks      int      `json:"weeks" env:"LESSON_WEEKS"`
}

// BroadcastConfig paces mass mailing
type BroadcastConfig struct {
	Delay      Duration `json:"delay" env:"BROADCAST_DELAY"`
	PauseEvery int      `json:"pause_every" env:"BROADCAST_PAUSE_EVERY"`
	Pause      Duration `json:"pause" env:"BROADCAST_PAUSE"`
}

// HTTPConfig controls the HTTP server and the bot mode
type HTTPConfig struct {
	Port        int    `json:"port" env:"PORT"`
	WebhookMode bool   `json:"webhook_mode" env:"WEBHOOK_MODE"`
	WebhookURL  string `json:"webhook_url" env:"WEBHOOK_URL"`
}

// LinksConfig holds the URLs shown to guests
type LinksConfig struct {
	Support  string `json:"support" env:"SUPPORT_URL"`
	Site     string `json:"site" env:"SITE_URL"`
	Feedback string `json:"feedback" env:"FEEDBACK_URL"`
}

// Default returns the configuration used for missing fields
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		LogEnv:  "production",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "inspira.db",
		},
		Redis: RedisConfig{Prefix: "inspira:ratelimit"},
		ClickHouse: ClickHouseConfig{
			Port:     9000,
			Database: "default",
			User:     "default",
		},
		TraceFile: "trace.csv",
		Ticket:    TicketConfig{TemplateDir: "media/img"},
		RateLimit: RateLimitConfig{
			Window:       Duration(30 * time.Second),
			RequestLimit: 12,
			BanThreshold: 32,
			TempBlock:    Duration(30 * time.Minute),
		},
		Lessons: LessonsConfig{
			Capacity:   10,
			Times:      []string{"11:00", "13:00", "15:00"},
			Activities: []string{"Modeling", "Painting"},
			Weeks:      4,
		},
		Broadcast: BroadcastConfig{
			Delay:      Duration(250 * time.Millisecond),
			PauseEvery: 15,
			Pause:      Duration(5 * time.Second),
		},
		HTTP:             HTTPConfig{Port: 8080},
		SessionTTL:       Duration(15 * time.Minute),
		RestartOnFailure: true,
		DigestHour:       9,
	}
}

// Path returns the config file location
func Path() string {
	if p := os.Getenv("INSPIRA_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the JSON file at path, applies environment overrides
// (including a .env file when present) and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// .env is optional, variables may come from the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if len(c.SuperuserIDs) == 0 {
		return fmt.Errorf("superuser_ids is required (list of Telegram user IDs)")
	}
	if c.HTTP.WebhookMode && c.HTTP.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required when webhook_mode is true")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" && !c.UseMockDB {
		return fmt.Errorf("database dsn is required")
	}
	if c.Lessons.Capacity <= 0 {
		return fmt.Errorf("lessons capacity must be positive")
	}
	if len(c.Lessons.Times) == 0 || len(c.Lessons.Activities) == 0 {
		return fmt.Errorf("lessons times and activities are required")
	}
	if c.DigestHour < -1 || c.DigestHour > 23 {
		return fmt.Errorf("digest_hour must be between -1 and 23")
	}
	return nil
}

// IsSuperuser reports whether the user is listed in superuser_ids
func (c *Config) IsSuperuser(userID int64) bool {
	for _, id := range c.SuperuserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
