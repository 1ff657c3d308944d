// Package config loads service settings from .env, an optional YAML file
// and PHISH_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"phishing-detector/features"
)

const envPrefix = "PHISH"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Features   FeaturesConfig   `mapstructure:"features"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type ModelConfig struct {
	Path string `mapstructure:"path"`
}

type ExtractionConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxTimeout time.Duration `mapstructure:"max_timeout"`
}

// WorkersConfig sizes the extraction and inference pools.
type WorkersConfig struct {
	Extraction int `mapstructure:"extraction"`
	Inference  int `mapstructure:"inference"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type FeaturesConfig struct {
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	DNSServer       string        `mapstructure:"dns_server"`
	RenderJS        bool          `mapstructure:"render_js"`
	ChromePath      string        `mapstructure:"chrome_path"`
	Reputation      bool          `mapstructure:"reputation"`
	SafeBrowsingKey string        `mapstructure:"safe_browsing_key"`
	SpamhausKey     string        `mapstructure:"spamhaus_key"`
}

// Extractor converts the settings for features.New.
func (f FeaturesConfig) Extractor() features.Config {
	return features.Config{
		HTTPTimeout:     f.HTTPTimeout,
		DNSServer:       f.DNSServer,
		RenderJS:        f.RenderJS,
		ChromePath:      f.ChromePath,
		Reputation:      f.Reputation,
		SafeBrowsingKey: f.SafeBrowsingKey,
		SpamhausKey:     f.SpamhausKey,
	}
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"port":       "server.port",
	"model":      "model.path",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"render-js":  "features.render_js",
}

// envAliases are unprefixed variables honored for deployment compatibility.
var envAliases = map[string]string{
	"server.port":                "PORT",
	"model.path":                 "MODEL_PATH",
	"features.chrome_path":       "CHROME_PATH",
	"features.safe_browsing_key": "GOOGLE_SAFE_BROWSING_KEY",
	"features.spamhaus_key":      "SPAMHAUS_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("model.path", "model/model.json")
	v.SetDefault("extraction.timeout", 30*time.Second)
	v.SetDefault("extraction.max_timeout", 120*time.Second)
	v.SetDefault("workers.extraction", 8)
	v.SetDefault("workers.inference", 4)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("features.http_timeout", 10*time.Second)
	v.SetDefault("features.dns_server", "8.8.8.8:53")
	v.SetDefault("features.render_js", false)
	v.SetDefault("features.chrome_path", "")
	v.SetDefault("features.reputation", true)
	v.SetDefault("features.safe_browsing_key", "")
	v.SetDefault("features.spamhaus_key", "")
}

// Load reads configuration. path names a config file; when empty,
// config.yaml in the working directory is used if present. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", alias, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Model.Path) == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Extraction.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("extraction.timeout must be positive, got %s", c.Extraction.Timeout))
	}
	if c.Extraction.MaxTimeout <= 0 {
		errs = append(errs, fmt.Errorf("extraction.max_timeout must be positive, got %s", c.Extraction.MaxTimeout))
	}
	if c.Extraction.Timeout > c.Extraction.MaxTimeout {
		errs = append(errs, fmt.Errorf("extraction.timeout %s exceeds extraction.max_timeout %s",
			c.Extraction.Timeout, c.Extraction.MaxTimeout))
	}
	if c.Workers.Extraction <= 0 {
		errs = append(errs, fmt.Errorf("workers.extraction must be positive, got %d", c.Workers.Extraction))
	}
	if c.Workers.Inference <= 0 {
		errs = append(errs, fmt.Errorf("workers.inference must be positive, got %d", c.Workers.Inference))
	}
	if c.Features.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("features.http_timeout must be positive, got %s", c.Features.HTTPTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
