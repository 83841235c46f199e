package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig is the bot identity and update delivery mode.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// OwnerID is the single non-removable highest-privilege identity.
	OwnerID int64  `yaml:"owner_id" envconfig:"OWNER_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 uses the client default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// ServerConfig describes the auxiliary HTTP listener serving health and metrics.
// Port 0 disables the listener.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Port   int    `yaml:"port" envconfig:"PORT"`
}

// StorageConfig selects the record store backend and its on-disk layout.
type StorageConfig struct {
	Driver       string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Dir          string `yaml:"dir" envconfig:"STORAGE_DIR"`
	AdminsFile   string `yaml:"admins_file"`
	MediaFile    string `yaml:"media_file"`
	ChannelsFile string `yaml:"channels_file"`
	UsersFile    string `yaml:"users_file"`
}

// DatabaseConfig holds PostgreSQL connection settings used by the postgres storage driver.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir points at golang-migrate files; relative paths resolve against the working directory.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// LoggingConfig controls the line format, level and optional log files.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	// Dir enables file output; BotFile receives every line, ErrorsFile only ERROR lines.
	Dir        string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile    string `yaml:"bot_file"`
	ErrorsFile string `yaml:"errors_file"`
	// Profile "dev" or "debug" switches the default format to key=value.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// Telegram update delivery modes. "polling" is accepted as an alias of
// RunModeLongpoll.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

const (
	// StorageJSON keeps every collection in its own JSON document.
	StorageJSON = "json"
	// StoragePostgres keeps collections in PostgreSQL tables.
	StoragePostgres = "postgres"
)

// Update classes accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig throttles each user to one update per IntervalMS.
// ExcludeUpdates lists update classes (UpdateCallback, UpdateMessage,
// UpdateInlineQuery) that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// CoreConfig lets *Config satisfy the runner's config carrier contract.
func (c *Config) CoreConfig() *Config {
	return c
}

// Load reads path as YAML when it exists, overlays environment variables and
// normalizes the result. An empty or missing path loads from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults in place. Sections are checked
// in declaration order and the first problem is returned.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	steps := []func(*Config) error{
		normalizeTelegram,
		normalizeServer,
		func(c *Config) error { return normalizeStorage(&c.Storage) },
		func(c *Config) error {
			if c.Storage.Driver != StoragePostgres {
				return nil
			}
			return normalizeDatabase(&c.Database)
		},
		normalizeRateLimit,
	}
	for _, step := range steps {
		if err := step(cfg); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	tg := &cfg.Telegram
	if strings.TrimSpace(tg.Token) == "" {
		return errors.New("telegram token is required")
	}
	if tg.OwnerID <= 0 {
		return errors.New("telegram.owner_id must be a positive user id")
	}

	mode := strings.ToLower(strings.TrimSpace(tg.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}
	switch mode {
	case RunModeLongpoll:
		if tg.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		wh := cfg.Webhook
		var missing string
		switch {
		case strings.TrimSpace(wh.URL) == "":
			missing = "webhook.url is required"
		case strings.TrimSpace(wh.Listen) == "":
			missing = "webhook.listen is required"
		case wh.Port <= 0:
			missing = "webhook.port must be > 0"
		}
		if missing != "" {
			return fmt.Errorf("%s when telegram.run_mode is 'webhook'", missing)
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", tg.RunMode)
	}
	tg.RunMode = mode
	return nil
}

func normalizeServer(cfg *Config) error {
	if cfg.Server.Port < 0 {
		return errors.New("server.port must be >= 0")
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = "0.0.0.0"
	}
	return nil
}

func normalizeRateLimit(cfg *Config) error {
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		switch key := strings.ToLower(strings.TrimSpace(v)); key {
		case "":
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			cfg.RateLimit.ExcludeUpdates[i] = key
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
	}
	return nil
}

func normalizeStorage(s *StorageConfig) error {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		driver = StorageJSON
	}
	switch driver {
	case StorageJSON, StoragePostgres:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: json, postgres", s.Driver)
	}
	s.Driver = driver

	if strings.TrimSpace(s.Dir) == "" {
		s.Dir = "data"
	}
	defaults := []struct {
		field *string
		name  string
	}{
		{&s.AdminsFile, "admins.json"},
		{&s.MediaFile, "media.json"},
		{&s.ChannelsFile, "channels.json"},
		{&s.UsersFile, "users.json"},
	}
	for _, d := range defaults {
		if strings.TrimSpace(*d.field) == "" {
			*d.field = d.name
		}
	}
	return nil
}

func normalizeDatabase(db *DatabaseConfig) error {
	if strings.TrimSpace(db.Host) == "" || strings.TrimSpace(db.Name) == "" {
		return errors.New("database.host and database.name are required when storage.driver is 'postgres'")
	}
	if strings.TrimSpace(db.Port) == "" {
		db.Port = "5432"
	}
	if strings.TrimSpace(db.SSLMode) == "" {
		db.SSLMode = "disable"
	}
	if db.MaxConnections <= 0 {
		db.MaxConnections = 5
	}
	if strings.TrimSpace(db.MigrationsDir) == "" {
		db.MigrationsDir = "migrations"
	}
	return nil
}
