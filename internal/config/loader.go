// Package config provides layered configuration for shelfgate:
// embedded defaults, an optional YAML config file, and SHELFGATE_*
// environment variables, highest layer last.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const envPrefix = "SHELFGATE"

// Load builds the effective configuration. An empty file path means
// the well-known locations are searched; a missing config file is not
// an error since the embedded defaults are complete.
func Load(file string) (*Config, error) {
	defaults := map[string]any{}
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		return nil, fmt.Errorf("decode embedded defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(defaults); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	if file = strings.TrimSpace(file); file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$XDG_CONFIG_HOME/shelfgate")
		v.AddConfigPath("$HOME/.config/shelfgate")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that hold for every command.
func (c *Config) Validate() error {
	if c.Budget.MaxPoints <= 0 {
		return errors.New("budget.max_points must be positive")
	}
	if c.Budget.RefillRate <= 0 {
		return errors.New("budget.refill_rate must be positive")
	}
	if c.Budget.EstimatedCost <= 0 || c.Budget.EstimatedCost > c.Budget.MaxPoints {
		return fmt.Errorf("budget.estimated_cost must be in (0, %g]", c.Budget.MaxPoints)
	}
	if c.Upstream.MaxPageSize < 1 {
		return errors.New("upstream.max_page_size must be at least 1")
	}
	return nil
}

// ValidateUpstream checks settings that only the serving path needs.
// Missing upstream credentials are fatal at startup, not at request
// time.
func (c *Config) ValidateUpstream() error {
	if strings.TrimSpace(c.Upstream.URL) == "" {
		return errors.New("upstream.url is required (set SHELFGATE_UPSTREAM_URL)")
	}
	if strings.TrimSpace(c.Upstream.AccessToken) == "" {
		return errors.New("upstream.access_token is required (set SHELFGATE_UPSTREAM_ACCESS_TOKEN)")
	}
	return nil
}
