package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Snapshot backends.
const (
	SnapshotMemory = "memory"
	SnapshotFile   = "file"
	SnapshotRedis  = "redis"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Tracker      TrackerConfig      `yaml:"tracker"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Notification NotificationConfig `yaml:"notification"`
	Events       EventsConfig       `yaml:"events"`
	Simulation   SimulationConfig   `yaml:"simulation"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// TrackerConfig selects where the alarm list lives.
type TrackerConfig struct {
	Mode       string         `yaml:"mode"`
	AlarmCount int            `yaml:"alarm_count"`
	Timezone   string         `yaml:"timezone"`
	Location   *time.Location `yaml:"-"`
}

// SnapshotConfig configures local snapshot persistence.
type SnapshotConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Key     string `yaml:"key"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// RedisConfig is shared by the redis snapshot backend and the event relay.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// NotificationConfig holds the delivery channels and the worker pool.
type NotificationConfig struct {
	WorkerPoolSize int         `yaml:"worker_pool_size"`
	QueueSize      int         `yaml:"queue_size"`
	Email          EmailConfig `yaml:"email"`
	Push           PushConfig  `yaml:"push"`
	AMQPURL        string      `yaml:"amqp_url"`
}

// EmailConfig configures the transactional email API.
type EmailConfig struct {
	Enabled        bool     `yaml:"enabled"`
	APIURL         string   `yaml:"api_url"`
	APIKey         string   `yaml:"api_key"`
	From           string   `yaml:"from"`
	Recipients     []string `yaml:"recipients"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// EventsConfig configures change-event fan-out across instances.
type EventsConfig struct {
	RedisRelay bool   `yaml:"redis_relay"`
	Channel    string `yaml:"channel"`
}

// SimulationConfig configures the random toggle driver.
type SimulationConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// WebhookConfig configures the status-change webhook intake.
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (cfg *Config) ApplyEnv() {
	setString(&cfg.Notification.Email.APIKey, "RESEND_API_KEY")
	setString(&cfg.Notification.Email.From, "ALERT_FROM")
	if to := os.Getenv("ALERT_TO"); to != "" {
		cfg.Notification.Email.Recipients = SplitRecipients(to)
	}
	setString(&cfg.Webhook.Secret, "SUPABASE_WEBHOOK_SECRET")
	setString(&cfg.Webhook.Secret, "WEBHOOK_SECRET")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Notification.AMQPURL, "AMQP_URL")
	setString(&cfg.Tracker.Mode, "TRACKER_MODE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Normalize validates the configuration and fills in defaults.
func (cfg *Config) Normalize() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	switch cfg.Tracker.Mode {
	case "":
		cfg.Tracker.Mode = ModeLocal
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("tracker.mode must be %q or %q, got %q", ModeLocal, ModeRemote, cfg.Tracker.Mode)
	}
	if cfg.Tracker.AlarmCount <= 0 {
		cfg.Tracker.AlarmCount = 10
	}
	if cfg.Tracker.Timezone == "" {
		cfg.Tracker.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Tracker.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Tracker.Timezone, err)
	}
	cfg.Tracker.Location = loc

	switch cfg.Snapshot.Backend {
	case "":
		cfg.Snapshot.Backend = SnapshotMemory
	case SnapshotMemory, SnapshotFile, SnapshotRedis:
	default:
		return fmt.Errorf("unknown snapshot.backend %q", cfg.Snapshot.Backend)
	}
	if cfg.Snapshot.Backend == SnapshotFile && cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = "./data"
	}
	if cfg.Snapshot.Key == "" {
		cfg.Snapshot.Key = "alarm-tracker:v1:alarms"
	}
	if (cfg.Snapshot.Backend == SnapshotRedis || cfg.Events.RedisRelay) && cfg.Redis.URL == "" {
		return fmt.Errorf("redis.url is required for the redis snapshot backend and the event relay")
	}

	if cfg.Tracker.Mode == ModeRemote && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required in %s mode", ModeRemote)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Notification.WorkerPoolSize <= 0 {
		cfg.Notification.WorkerPoolSize = 1
	}
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 64
	}
	if cfg.Notification.Email.APIURL == "" {
		cfg.Notification.Email.APIURL = "https://api.resend.com"
	}
	if cfg.Notification.Email.From == "" {
		cfg.Notification.Email.From = "Alarm <alerts@example.com>"
	}
	if cfg.Notification.Email.TimeoutSeconds <= 0 {
		cfg.Notification.Email.TimeoutSeconds = 10
	}
	if cfg.Notification.Push.TTL <= 0 {
		cfg.Notification.Push.TTL = 3600
	}

	if cfg.Events.Channel == "" {
		cfg.Events.Channel = "alarm-tracker:v1:events"
	}

	if cfg.Simulation.IntervalSeconds <= 0 {
		cfg.Simulation.IntervalSeconds = 5
	}
	cfg.Simulation.Interval = time.Duration(cfg.Simulation.IntervalSeconds) * time.Second

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	return nil
}

// SplitRecipients parses a comma separated address list, dropping blanks.
func SplitRecipients(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
