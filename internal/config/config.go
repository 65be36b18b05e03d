package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LABREPORT_DATABASE_PASSWORD.
const EnvPrefix = "LABREPORT"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Lab        LabConfig        `mapstructure:"lab"`
	Report     ReportConfig     `mapstructure:"report"`
	Sequence   SequenceConfig   `mapstructure:"sequence"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Drafts     DraftsConfig     `mapstructure:"drafts"`
	Events     EventsConfig     `mapstructure:"events"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" split_words:"true"`
	Security   SecurityConfig   `mapstructure:"security"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes" split_words:"true"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" split_words:"true"`
}

// LabConfig is the fixed text printed on every report.
type LabConfig struct {
	Name                   string   `mapstructure:"name"`
	Address                string   `mapstructure:"address"`
	Phone                  string   `mapstructure:"phone"`
	Timezone               string   `mapstructure:"timezone"`
	Doctors                []string `mapstructure:"doctors"`
	Signatory              string   `mapstructure:"signatory"`
	SignatoryQualification string   `mapstructure:"signatory_qualification" split_words:"true"`
	FooterGrade            string   `mapstructure:"footer_grade" split_words:"true"`
	FooterNote             string   `mapstructure:"footer_note" split_words:"true"`
}

type ReportConfig struct {
	CatalogPath string  `mapstructure:"catalog_path" split_words:"true"`
	PageHeight  float64 `mapstructure:"page_height" split_words:"true"`
	PixelsPerMM float64 `mapstructure:"pixels_per_mm" envconfig:"PIXELS_PER_MM"`
	QRCode      bool    `mapstructure:"qr_code" envconfig:"QR_CODE"`
}

type SequenceConfig struct {
	Backend string `mapstructure:"backend"`
	// Path of the JSON file used by the file backend.
	Path string `mapstructure:"path"`
	// KeyPrefix is prepended to the Redis key.
	KeyPrefix string `mapstructure:"key_prefix" split_words:"true"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether reports can be mailed.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type DraftsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type EventsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Channel       string        `mapstructure:"channel"`
	QueueSize     int           `mapstructure:"queue_size" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" split_words:"true"`
	AllowedMethods []string `mapstructure:"allowed_methods" split_words:"true"`
	AllowedHeaders []string `mapstructure:"allowed_headers" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled" split_words:"true"`
	MetricsPath       string `mapstructure:"metrics_path" split_words:"true"`
	Namespace         string `mapstructure:"namespace"`
}

// DefaultDoctors is the referring doctor list offered on the patient form.
var DefaultDoctors = []string{
	"Dr. C. B. Patel",
	"Dr. Maulik Patel",
	"Dr. Jignesh Patel",
	"Dr. S. C. Pandya",
	"Dr. Jignesh Vasava",
	"Dr. Nimit Patel",
	"Dr. Rakesh Patel",
	"Dr. Imran Luhar",
	"Dr. Rai",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("lab.name", "Maruti Nisarg Laboratory")
	v.SetDefault("lab.timezone", "Local")
	v.SetDefault("lab.doctors", DefaultDoctors)
	v.SetDefault("lab.signatory", "Mrs. Heena V. Modh")
	v.SetDefault("lab.signatory_qualification", "B.Sc. PGDMLT")
	v.SetDefault("lab.footer_grade", "Basic Composite Laboratory As per GR# 52 CH / 122018 / 1032 / A By MOHFW - Gov. of Gujarat.")
	v.SetDefault("lab.footer_note", "Lab Reports are subject to technical limitations. Clinical correlation is necessary.")

	v.SetDefault("report.page_height", 295.0)
	v.SetDefault("report.pixels_per_mm", 8.0)
	v.SetDefault("report.qr_code", true)

	v.SetDefault("sequence.backend", "file")
	v.SetDefault("sequence.path", "data/sequence.json")
	v.SetDefault("sequence.key_prefix", "labreport:")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "labreport")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("drafts.ttl", 2*time.Hour)
	v.SetDefault("drafts.cleanup_interval", 10*time.Minute)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.channel", "labreport.events")
	v.SetDefault("events.queue_size", 100)
	v.SetDefault("events.retry_attempts", 3)
	v.SetDefault("events.retry_delay", 500*time.Millisecond)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})

	v.SetDefault("log.level", "info")

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/api/v1/health/metrics")
	v.SetDefault("monitoring.namespace", "labreport")
}

// LoadConfig reads .env, then the YAML file (path, or config.yml searched in
// the usual places), then LABREPORT_* environment overrides. A missing YAML
// file is not an error; defaults cover every setting.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Sequence.Backend {
	case "file", "redis", "postgres":
	default:
		return fmt.Errorf("unknown sequence backend %q", c.Sequence.Backend)
	}
	if c.Report.PageHeight <= 0 {
		return fmt.Errorf("report.page_height must be positive")
	}
	if c.Report.PixelsPerMM <= 0 {
		return fmt.Errorf("report.pixels_per_mm must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Lab.Doctors) == 0 {
		return fmt.Errorf("lab.doctors must not be empty")
	}
	return nil
}

// Location is the time zone that decides when a day ends.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Lab.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid lab.timezone %q: %w", name, err)
	}
	return loc, nil
}
