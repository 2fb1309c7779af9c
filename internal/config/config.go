package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Event sources the relay can ingest from.
const (
	SourceNone     = "none"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceKafka    = "kafka"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Client
	APIBaseURL      string `mapstructure:"API_BASE_URL"`
	RealtimeURL     string `mapstructure:"REALTIME_URL"`
	CredentialsFile string `mapstructure:"CREDENTIALS_FILE"`
	MergeUpdates    bool   `mapstructure:"MERGE_UPDATES"`

	// Relay
	RelayPort      string   `mapstructure:"RELAY_PORT"`
	RelayJWTSecret string   `mapstructure:"RELAY_JWT_SECRET"`
	RelayJWTIssuer string   `mapstructure:"RELAY_JWT_ISSUER"`
	EventSource    string   `mapstructure:"EVENT_SOURCE"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	PGChannel      string   `mapstructure:"PG_CHANNEL"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	RedisChannel   string   `mapstructure:"REDIS_CHANNEL"`
	KafkaBrokers   []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string   `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID   string   `mapstructure:"KAFKA_GROUP_ID"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("REALTIME_URL", "ws://localhost:8080/ws")
	v.SetDefault("CREDENTIALS_FILE", defaultCredentialsFile())
	v.SetDefault("MERGE_UPDATES", false)
	v.SetDefault("RELAY_PORT", "8080")
	v.SetDefault("EVENT_SOURCE", SourceNone)
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("PG_CHANNEL", "medhya_events")
	v.SetDefault("REDIS_CHANNEL", "medhya:events")
	v.SetDefault("KAFKA_TOPIC", "medhya-events")
	v.SetDefault("KAFKA_GROUP_ID", "medhya-relay")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"ENV", "LOG_LEVEL",
		"API_BASE_URL", "REALTIME_URL", "CREDENTIALS_FILE", "MERGE_UPDATES",
		"RELAY_PORT", "RELAY_JWT_SECRET", "RELAY_JWT_ISSUER", "EVENT_SOURCE",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "PG_CHANNEL",
		"REDIS_URL", "REDIS_CHANNEL",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))
	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.EventSource = strings.ToLower(strings.TrimSpace(cfg.EventSource))

	return cfg, nil
}

// splitList handles comma separated env values, which viper may hand over
// as a single element or split without trimming.
func splitList(parsed []string, raw string) []string {
	if len(parsed) > 0 {
		raw = strings.Join(parsed, ",")
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".medhya-credentials.json"
	}
	return filepath.Join(dir, "medhya", "credentials.json")
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ValidateClient checks the settings the CLI client needs.
func (c *Config) ValidateClient() error {
	if err := validURL("API_BASE_URL", c.APIBaseURL, "http", "https"); err != nil {
		return err
	}
	if c.RealtimeURL != "" {
		if err := validURL("REALTIME_URL", c.RealtimeURL, "ws", "wss"); err != nil {
			return err
		}
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("CREDENTIALS_FILE is required")
	}
	return nil
}

// ValidateRelay checks the settings the relay needs. The JWT secret is
// required everywhere; development mode only relaxes its minimum length.
func (c *Config) ValidateRelay() error {
	if c.RelayPort == "" {
		return fmt.Errorf("RELAY_PORT is required")
	}
	if c.RelayJWTSecret == "" {
		return fmt.Errorf("RELAY_JWT_SECRET is required")
	}
	if !c.IsDev() && len(c.RelayJWTSecret) < 32 {
		return fmt.Errorf("RELAY_JWT_SECRET must be at least 32 characters outside development, got %d", len(c.RelayJWTSecret))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return c.ValidateEventSource()
}

// ValidateEventSource checks the transport settings of EVENT_SOURCE. The
// publish command uses it on its own.
func (c *Config) ValidateEventSource() error {
	switch c.EventSource {
	case SourceNone, "":
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when EVENT_SOURCE is %q", SourcePostgres)
		}
		if c.PGChannel == "" {
			return fmt.Errorf("PG_CHANNEL is required when EVENT_SOURCE is %q", SourcePostgres)
		}
	case SourceRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when EVENT_SOURCE is %q", SourceRedis)
		}
	case SourceKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_SOURCE is %q", SourceKafka)
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required when EVENT_SOURCE is %q", SourceKafka)
		}
	default:
		return fmt.Errorf("EVENT_SOURCE must be \"none\", \"postgres\", \"redis\", or \"kafka\", got %q", c.EventSource)
	}
	return nil
}

func validURL(name, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL, got %q", name, strings.Join(schemes, " or "), raw)
}
