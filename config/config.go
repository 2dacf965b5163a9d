package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Log          LogConfig          `yaml:"log"`
	Timezone     string             `yaml:"timezone" env:"TZ_NAME"`
	Attendance   AttendanceConfig   `yaml:"attendance"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Notification NotificationConfig `yaml:"notification"`

	Location *time.Location `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"PORT"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	JWTSecret       string  `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN                    string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format"` // text | json
	Output     string `yaml:"output"` // stdout | file | both
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AttendanceConfig holds the interactive attendance thresholds.
type AttendanceConfig struct {
	ZombieHours          float64 `yaml:"zombie_hours"`
	DayStart             string  `yaml:"day_start"`
	QuickBookHours       float64 `yaml:"quick_book_hours"`
	DefaultRate          float64 `yaml:"default_rate"`
	StubPersonalNrFormat string  `yaml:"stub_personal_nr_format"`

	ZombieAfter    time.Duration `yaml:"-"`
	DayStartMinute int           `yaml:"-"`
}

// ReconcileConfig holds the sweep schedule and the reconciliation thresholds.
type ReconcileConfig struct {
	Enabled               bool    `yaml:"enabled"`
	IntervalSeconds       int     `yaml:"interval_seconds"`
	WindowMinutes         int     `yaml:"window_minutes"`
	JitterMinMinutes      float64 `yaml:"jitter_min_minutes"`
	JitterMaxMinutes      float64 `yaml:"jitter_max_minutes"`
	MinSpanMinutes        int     `yaml:"min_span_minutes"`
	AuditHour             int     `yaml:"audit_hour"`
	EndOfDay              string  `yaml:"end_of_day"`
	DefaultCheckoutHour   int     `yaml:"default_checkout_hour"`
	FallbackCheckoutHours float64 `yaml:"fallback_checkout_hours"`
	MaxOpenHours          float64 `yaml:"max_open_hours"`
	ExcessiveHours        float64 `yaml:"excessive_hours"`
	ExcessiveCooldownMins int     `yaml:"excessive_cooldown_minutes"`
	Seed                  uint64  `yaml:"seed"`

	Interval       time.Duration `yaml:"-"`
	EndOfDayMinute int           `yaml:"-"`
}

// NotificationConfig holds the warning delivery sinks.
type NotificationConfig struct {
	PoolSize int         `yaml:"pool_size"`
	Email    EmailConfig `yaml:"email"`
	Push     PushConfig  `yaml:"push"`
}

// EmailConfig configures SMTP delivery of warnings. Empty Host disables it.
type EmailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password" env:"SMTP_PASSWORD"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// PushConfig holds the VAPID keys for web push notifications. Empty keys disable it.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Load reads the configuration from the given path, overlays environment
// variables and applies defaults.
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

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, used by tests
// and when running without a config file.
func Default() *Config {
	var cfg Config
	if err := cfg.applyDefaults(); err != nil {
		// defaults are constants; failing here is a programming error
		panic(err)
	}
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "logs/zeiterfassung.log"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("unknown timezone %q, falling back to UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}
	cfg.Location = loc

	a := &cfg.Attendance
	if a.ZombieHours <= 0 {
		a.ZombieHours = 14
	}
	a.ZombieAfter = hours(a.ZombieHours)
	if a.DayStart == "" {
		a.DayStart = "06:00"
	}
	if a.DayStartMinute, err = clockMinutes(a.DayStart); err != nil {
		return fmt.Errorf("attendance.day_start: %w", err)
	}
	if a.QuickBookHours <= 0 {
		a.QuickBookHours = 4
	}
	if a.DefaultRate <= 0 {
		a.DefaultRate = 15
	}
	if a.StubPersonalNrFormat == "" {
		a.StubPersonalNrFormat = "D%03d"
	}

	r := &cfg.Reconcile
	if r.IntervalSeconds <= 0 {
		r.IntervalSeconds = 60
	}
	r.Interval = time.Duration(r.IntervalSeconds) * time.Second
	if r.WindowMinutes <= 0 {
		r.WindowMinutes = 10
	}
	if r.JitterMinMinutes <= 0 {
		r.JitterMinMinutes = 3
	}
	if r.JitterMaxMinutes < r.JitterMinMinutes {
		r.JitterMaxMinutes = max(6, r.JitterMinMinutes)
	}
	if r.MinSpanMinutes <= 0 {
		r.MinSpanMinutes = 60
	}
	if r.AuditHour <= 0 || r.AuditHour > 23 {
		r.AuditHour = 10
	}
	if r.EndOfDay == "" {
		r.EndOfDay = "23:00"
	}
	if r.EndOfDayMinute, err = clockMinutes(r.EndOfDay); err != nil {
		return fmt.Errorf("reconcile.end_of_day: %w", err)
	}
	if r.DefaultCheckoutHour <= 0 || r.DefaultCheckoutHour > 23 {
		r.DefaultCheckoutHour = 20
	}
	if r.FallbackCheckoutHours <= 0 {
		r.FallbackCheckoutHours = 8
	}
	if r.MaxOpenHours <= 0 {
		r.MaxOpenHours = 14
	}
	if r.ExcessiveHours <= 0 {
		r.ExcessiveHours = 10
	}
	if r.ExcessiveCooldownMins <= 0 {
		r.ExcessiveCooldownMins = 120
	}

	n := &cfg.Notification
	if n.PoolSize <= 0 {
		log.Printf("notification.pool_size is not set or invalid; defaulting to 1")
		n.PoolSize = 1
	}
	if n.Email.Port <= 0 {
		n.Email.Port = 587
	}
	if n.Push.TTL <= 0 {
		n.Push.TTL = 3600
	}
	return nil
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func clockMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
