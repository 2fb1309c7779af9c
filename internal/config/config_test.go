package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVENT_SOURCE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.RelayPort != "8080" {
		t.Errorf("expected default relay port 8080, got %s", cfg.RelayPort)
	}
	if cfg.PGChannel != "medhya_events" {
		t.Errorf("expected default pg channel, got %s", cfg.PGChannel)
	}
	if cfg.DBMaxConns != 5 {
		t.Errorf("expected default max conns 5, got %d", cfg.DBMaxConns)
	}
	if cfg.CredentialsFile == "" {
		t.Error("expected a default credentials file")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.medhya.test")
	t.Setenv("EVENT_SOURCE", " Kafka ")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MERGE_UPDATES", "true")
	t.Setenv("DB_MAX_CONNS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "https://api.medhya.test" {
		t.Errorf("expected API_BASE_URL from env, got %s", cfg.APIBaseURL)
	}
	if cfg.EventSource != SourceKafka {
		t.Errorf("expected kafka source, got %q", cfg.EventSource)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("expected two brokers, got %v", cfg.KafkaBrokers)
	}
	if !cfg.MergeUpdates {
		t.Error("expected MERGE_UPDATES=true")
	}
	if cfg.DBMaxConns != 12 {
		t.Errorf("expected 12 max conns, got %d", cfg.DBMaxConns)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
	if !c.IsProduction() {
		t.Error("expected IsProduction() to return true for production")
	}
}

func validRelay() *Config {
	return &Config{
		Env:            "production",
		RelayPort:      "8080",
		RelayJWTSecret: "0123456789abcdef0123456789abcdef",
		EventSource:    SourceNone,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

func TestValidateRelay(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing secret", func(c *Config) { c.RelayJWTSecret = "" }, true},
		{"short secret in production", func(c *Config) { c.RelayJWTSecret = "short" }, true},
		{"short secret in development", func(c *Config) { c.Env = "development"; c.RelayJWTSecret = "short" }, false},
		{"postgres without url", func(c *Config) { c.EventSource = SourcePostgres; c.PGChannel = "x" }, true},
		{"postgres ok", func(c *Config) {
			c.EventSource = SourcePostgres
			c.DatabaseURL = "postgres://localhost/medhya"
			c.PGChannel = "medhya_events"
		}, false},
		{"redis without url", func(c *Config) { c.EventSource = SourceRedis }, true},
		{"kafka without brokers", func(c *Config) { c.EventSource = SourceKafka; c.KafkaTopic = "t" }, true},
		{"kafka ok", func(c *Config) {
			c.EventSource = SourceKafka
			c.KafkaBrokers = []string{"k:9092"}
			c.KafkaTopic = "t"
		}, false},
		{"unknown source", func(c *Config) { c.EventSource = "rabbitmq" }, true},
		{"zero rate limit", func(c *Config) { c.RateLimitRPS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validRelay()
			tt.mutate(c)
			err := c.ValidateRelay()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateClient(t *testing.T) {
	c := &Config{APIBaseURL: "https://api.medhya.test", RealtimeURL: "wss://rt.medhya.test/ws", CredentialsFile: "/tmp/c.json"}
	if err := c.ValidateClient(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.RealtimeURL = "https://rt.medhya.test/ws"
	if err := c.ValidateClient(); err == nil {
		t.Error("expected error for non-websocket realtime url")
	}

	c.RealtimeURL = ""
	c.APIBaseURL = "api.medhya.test"
	if err := c.ValidateClient(); err == nil {
		t.Error("expected error for url without scheme")
	}
}
