// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port       int    `yaml:"port"`
	AuthSecret string `yaml:"auth_secret"` // HMAC secret for bearer tokens
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type StoreConfig struct {
	Backend   string        `yaml:"backend"`    // redis | postgres
	RecordTTL time.Duration `yaml:"record_ttl"` // retention, redis backend only
}

type QueueConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Name        string        `yaml:"name"`
	Block       time.Duration `yaml:"block"`        // max receive block per poll
	MaxAttempts int           `yaml:"max_attempts"` // redeliveries before a job is poisoned
	Workers     int           `yaml:"workers"`
	Embedded    bool          `yaml:"embedded"` // run a consumer inside cmd/app
}

type OrchestratorConfig struct {
	MaxSyncWaitMs int `yaml:"max_sync_wait_ms"` // ceiling beyond which requests run inline
	PollInitialMs int `yaml:"poll_initial_ms"`
	PollMaxMs     int `yaml:"poll_max_ms"`
	RetryAfterSec int `yaml:"retry_after_sec"` // hint sent with pending responses
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
	MaxOutput    int    `yaml:"max_output_tokens"`
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	Database     DatabaseConfig     `yaml:"database"`
	Queue        QueueConfig        `yaml:"queue"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	AI           AIConfig           `yaml:"ai"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}
	if cfg.Store.RecordTTL <= 0 {
		cfg.Store.RecordTTL = 24 * time.Hour
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "orchestrator:jobs"
	}
	if cfg.Queue.Block <= 0 {
		cfg.Queue.Block = 5 * time.Second
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Orchestrator.MaxSyncWaitMs <= 0 {
		cfg.Orchestrator.MaxSyncWaitMs = 25000
	}
	if cfg.Orchestrator.PollInitialMs <= 0 {
		cfg.Orchestrator.PollInitialMs = 50
	}
	if cfg.Orchestrator.PollMaxMs <= 0 {
		cfg.Orchestrator.PollMaxMs = 800
	}
	if cfg.Orchestrator.RetryAfterSec <= 0 {
		cfg.Orchestrator.RetryAfterSec = 1
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}

	// Minimal validation
	switch cfg.Store.Backend {
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, errors.New("redis.url is required for store.backend=redis")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required for store.backend=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}
	if cfg.Queue.Enabled && cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required when queue.enabled=true")
	}
	if cfg.Server.AuthSecret == "" && !dev {
		return nil, errors.New("server.auth_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// MaxSyncWait is the absolute ceiling the dispatcher will block in-process.
func (c *OrchestratorConfig) MaxSyncWait() time.Duration {
	return time.Duration(c.MaxSyncWaitMs) * time.Millisecond
}

func (c *OrchestratorConfig) PollInitial() time.Duration {
	return time.Duration(c.PollInitialMs) * time.Millisecond
}

func (c *OrchestratorConfig) PollMax() time.Duration {
	return time.Duration(c.PollMaxMs) * time.Millisecond
}
