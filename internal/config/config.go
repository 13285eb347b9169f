// Package config 加载服务配置：结构体默认值 < .env / 环境变量，加载后统一校验
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
	Feed     FeedConfig     `koanf:"feed"`
	Session  SessionConfig  `koanf:"session"`
	Breaker  BreakerConfig  `koanf:"breaker"`
}

type ServerConfig struct {
	Port    int    `koanf:"port" validate:"min=1,max=65535"`
	GinMode string `koanf:"gin_mode" validate:"oneof=debug release test"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type FeedConfig struct {
	PageSize        int           `koanf:"page_size" validate:"min=1,max=100"`
	RetryMax        int           `koanf:"retry_max" validate:"min=0,max=10"`
	RetryBase       time.Duration `koanf:"retry_base" validate:"min=0"`
	IOTimeout       time.Duration `koanf:"io_timeout" validate:"gt=0"`
	HighlightPool   int           `koanf:"highlight_pool" validate:"min=1,max=50"`
	HighlightOutput int           `koanf:"highlight_output" validate:"min=1,ltefield=HighlightPool"`
	PopularCacheTTL time.Duration `koanf:"popular_cache_ttl" validate:"min=0"`
}

type SessionConfig struct {
	CacheSize int           `koanf:"cache_size" validate:"min=1"`
	TTL       time.Duration `koanf:"ttl" validate:"gt=0"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"min=1"`
	Interval     time.Duration `koanf:"interval" validate:"min=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"min=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			GinMode: "release",
		},
		Database: DatabaseConfig{
			URL:             "host=localhost user=postgres password=postgres dbname=solafeed port=5432 sslmode=disable TimeZone=UTC",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Feed: FeedConfig{
			PageSize:        15,
			RetryMax:        2,
			RetryBase:       time.Second,
			IOTimeout:       30 * time.Second,
			HighlightPool:   6,
			HighlightOutput: 2,
			PopularCacheTTL: 10 * time.Minute,
		},
		Session: SessionConfig{
			CacheSize: 5000,
			TTL:       30 * time.Minute,
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// 环境变量 -> koanf 路径，不在表中的变量忽略
var envMappings = map[string]string{
	"port":                  "server.port",
	"gin_mode":              "server.gin_mode",
	"database_url":          "database.url",
	"db_max_open_conns":     "database.max_open_conns",
	"db_max_idle_conns":     "database.max_idle_conns",
	"db_conn_max_lifetime":  "database.conn_max_lifetime",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"feed_page_size":        "feed.page_size",
	"feed_retry_max":        "feed.retry_max",
	"feed_retry_base":       "feed.retry_base",
	"feed_io_timeout":       "feed.io_timeout",
	"highlight_pool_size":   "feed.highlight_pool",
	"highlight_output_size": "feed.highlight_output",
	"popular_cache_ttl":     "feed.popular_cache_ttl",
	"session_cache_size":    "session.cache_size",
	"session_ttl":           "session.ttl",
	"breaker_max_requests":  "breaker.max_requests",
	"breaker_interval":      "breaker.interval",
	"breaker_timeout":       "breaker.timeout",
	"breaker_min_requests":  "breaker.min_requests",
	"breaker_failure_ratio": "breaker.failure_ratio",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load 默认值 -> 环境变量，最后校验
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
