package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Feed.PageSize != 15 || cfg.Feed.RetryMax != 2 || cfg.Feed.RetryBase != time.Second {
		t.Errorf("feed defaults = %+v", cfg.Feed)
	}
	if cfg.Feed.HighlightPool != 6 || cfg.Feed.HighlightOutput != 2 {
		t.Errorf("highlight defaults = %+v", cfg.Feed)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/solafeed")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("FEED_PAGE_SIZE", "20")
	t.Setenv("FEED_RETRY_BASE", "250ms")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.5")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://u:p@db/solafeed" {
		t.Errorf("url = %q", cfg.Database.URL)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("format = %q", cfg.Logging.Format)
	}
	if cfg.Feed.PageSize != 20 || cfg.Feed.RetryBase != 250*time.Millisecond {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("session ttl = %v", cfg.Session.TTL)
	}
	if cfg.Breaker.FailureRatio != 0.5 {
		t.Errorf("failure ratio = %v", cfg.Breaker.FailureRatio)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty database url", func(c *Config) { c.Database.URL = "" }, "URL"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "Level"},
		{"zero page size", func(c *Config) { c.Feed.PageSize = 0 }, "PageSize"},
		{"output larger than pool", func(c *Config) { c.Feed.HighlightOutput = 10 }, "HighlightOutput"},
		{"ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, "FailureRatio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}
}
