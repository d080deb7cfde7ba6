package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Uploads    UploadsConfig    `yaml:"uploads" mapstructure:"uploads"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Reclassify ReclassifyConfig `yaml:"reclassify" mapstructure:"reclassify"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OpenRouterConfig holds OpenRouter API settings.
type OpenRouterConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Referer    string  `yaml:"referer" mapstructure:"referer"`
	Title      string  `yaml:"title" mapstructure:"title"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ClassifierConfig configures the classification cascade.
type ClassifierConfig struct {
	// Provider selects the model backend: openrouter, anthropic, or local.
	Provider          string   `yaml:"provider" mapstructure:"provider"`
	VisionModels      []string `yaml:"vision_models" mapstructure:"vision_models"`
	TextModels        []string `yaml:"text_models" mapstructure:"text_models"`
	VisionTimeoutSecs int      `yaml:"vision_timeout_secs" mapstructure:"vision_timeout_secs"`
	TextTimeoutSecs   int      `yaml:"text_timeout_secs" mapstructure:"text_timeout_secs"`
	DeadlineSecs      int      `yaml:"deadline_secs" mapstructure:"deadline_secs"`
	ExpiredPolicy     string   `yaml:"expired_policy" mapstructure:"expired_policy"`
	TiersFile         string   `yaml:"tiers_file" mapstructure:"tiers_file"`
	CacheTTLHours     int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// VisionTimeout returns the per-call vision budget.
func (c ClassifierConfig) VisionTimeout() time.Duration {
	return time.Duration(c.VisionTimeoutSecs) * time.Second
}

// TextTimeout returns the per-call text budget.
func (c ClassifierConfig) TextTimeout() time.Duration {
	return time.Duration(c.TextTimeoutSecs) * time.Second
}

// Deadline returns the overall cascade budget; zero disables it.
func (c ClassifierConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineSecs) * time.Second
}

// CacheTTL returns how long cached verdicts live.
func (c ClassifierConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// RedisConfig configures the optional verdict cache.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// UploadsConfig configures local image storage.
type UploadsConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	MaxBytes int    `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	ExpireIntervalMins int      `yaml:"expire_interval_mins" mapstructure:"expire_interval_mins"`
}

// ReclassifyConfig configures bulk reclassification.
type ReclassifyConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
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
	v.SetEnvPrefix("FOODSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can see them
	// during Unmarshal.
	v.SetDefault("openrouter.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("classifier.tiers_file", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "foodshare.db")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.referer", "http://localhost:8080")
	v.SetDefault("openrouter.title", "Food Donation Safety")
	v.SetDefault("openrouter.rate_per_sec", 2.0)
	v.SetDefault("classifier.provider", "openrouter")
	v.SetDefault("classifier.vision_models", []string{
		"nvidia/nemotron-nano-12b-v2-vl:free",
		"google/gemini-2.0-flash-exp:free",
		"meta-llama/llama-3.2-11b-vision-instruct:free",
	})
	v.SetDefault("classifier.text_models", []string{
		"meta-llama/llama-3.2-3b-instruct:free",
		"huggingfaceh4/zephyr-7b-beta:free",
		"microsoft/phi-3-mini-128k-instruct:free",
	})
	v.SetDefault("classifier.vision_timeout_secs", 20)
	v.SetDefault("classifier.text_timeout_secs", 15)
	v.SetDefault("classifier.deadline_secs", 0)
	v.SetDefault("classifier.expired_policy", "skip_text")
	v.SetDefault("classifier.cache_ttl_hours", 24)
	v.SetDefault("uploads.dir", "static/uploads")
	v.SetDefault("uploads.max_bytes", 16*1024*1024)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("server.expire_interval_mins", 60)
	v.SetDefault("reclassify.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings needed by mode: serve, classify, or batch.
// Every problem is reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "classify", "batch":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" && mode != "classify" {
		errs = append(errs, "store.database_url is required")
	}

	switch c.Classifier.Provider {
	case "openrouter", "anthropic", "local":
	default:
		errs = append(errs, fmt.Sprintf("classifier.provider %q is not openrouter, anthropic, or local", c.Classifier.Provider))
	}
	switch c.Classifier.ExpiredPolicy {
	case "skip_text", "local_only", "all":
	default:
		errs = append(errs, fmt.Sprintf("classifier.expired_policy %q is not skip_text, local_only, or all", c.Classifier.ExpiredPolicy))
	}
	if c.Classifier.VisionTimeoutSecs < 0 || c.Classifier.TextTimeoutSecs < 0 || c.Classifier.DeadlineSecs < 0 {
		errs = append(errs, "classifier timeouts must be >= 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "batch":
		if c.Reclassify.Concurrency < 1 || c.Reclassify.Concurrency > 50 {
			errs = append(errs, "reclassify.concurrency must be between 1 and 50")
		}
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
