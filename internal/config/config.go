package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Seller SellerConfig `yaml:"seller" mapstructure:"seller"`
	Rules  RulesConfig  `yaml:"rules" mapstructure:"rules"`
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Batch  BatchConfig  `yaml:"batch" mapstructure:"batch"`
	Redis  RedisConfig  `yaml:"redis" mapstructure:"redis"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SellerConfig identifies the seller's own sending domains. Addresses at
// these domains mark an email as outbound.
type SellerConfig struct {
	Domains []string `yaml:"domains" mapstructure:"domains"`
}

// RulesConfig points at the classification rule table file. When Path is
// empty the built-in default table is used.
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// EngineConfig tunes the attribution engine. MaxEmails caps how many emails
// one run processes per workspace and StartOffset skips into the corpus;
// both default to 0, meaning the whole corpus from the start. Useful for
// trial runs against a slice of a large workspace.
type EngineConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	CandidateLimit int `yaml:"candidate_limit" mapstructure:"candidate_limit"`
	MaxEmails      int `yaml:"max_emails" mapstructure:"max_emails"`
	StartOffset    int `yaml:"start_offset" mapstructure:"start_offset"`
}

// BatchConfig configures multi-workspace batch processing.
type BatchConfig struct {
	MaxConcurrentWorkspaces int `yaml:"max_concurrent_workspaces" mapstructure:"max_concurrent_workspaces"`
}

// RedisConfig configures the optional person-lookup cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr       string `yaml:"addr" mapstructure:"addr"`
	Password   string `yaml:"password" mapstructure:"password"`
	DB         int    `yaml:"db" mapstructure:"db"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the webhook server. An empty WebhookSecret
// disables bearer auth on the webhook endpoints.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	WebhookSecret string  `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATTRIBUTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("engine.batch_size", 100)
	v.SetDefault("engine.candidate_limit", 500)
	v.SetDefault("engine.max_emails", 0)
	v.SetDefault("engine.start_offset", 0)
	v.SetDefault("batch.max_concurrent_workspaces", 4)
	v.SetDefault("redis.ttl_minutes", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required by the given run mode. Modes map to
// the top-level commands: "link", "coverage", "migrate", "serve", "rules".
func (c *Config) Validate(mode string) error {
	var errs []string

	needsStore := func() {
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported (postgres, sqlite)", c.Store.Driver))
		}
	}

	switch mode {
	case "link":
		needsStore()
		if c.Engine.BatchSize < 1 || c.Engine.BatchSize > 10000 {
			errs = append(errs, "engine.batch_size must be between 1 and 10000")
		}
		if c.Engine.CandidateLimit < 1 {
			errs = append(errs, "engine.candidate_limit must be >= 1")
		}
		if c.Engine.MaxEmails < 0 {
			errs = append(errs, "engine.max_emails must be >= 0")
		}
		if c.Engine.StartOffset < 0 {
			errs = append(errs, "engine.start_offset must be >= 0")
		}
		if c.Batch.MaxConcurrentWorkspaces < 1 || c.Batch.MaxConcurrentWorkspaces > 32 {
			errs = append(errs, "batch.max_concurrent_workspaces must be between 1 and 32")
		}
	case "coverage", "migrate":
		needsStore()
	case "serve":
		needsStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS <= 0 {
			errs = append(errs, "server.rate_limit_rps must be > 0")
		}
	case "rules":
		// Rule inspection needs no store.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
