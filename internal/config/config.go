package config

import "time"

// Config represents the complete application configuration. Values are
// layered: embedded defaults, then an optional config file, then
// SHELFGATE_* environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	State    StateConfig    `mapstructure:"state"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StateConfig selects and configures the persisted state store shared
// by all instances.
type StateConfig struct {
	Driver string       `mapstructure:"driver"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Libsql LibsqlConfig `mapstructure:"libsql"`
}

// RedisConfig contains connection settings for the redis driver.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LibsqlConfig contains connection settings for the libsql driver.
type LibsqlConfig struct {
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig contains read-through cache TTLs.
type CacheConfig struct {
	ProductTTL time.Duration `mapstructure:"product_ttl"`
	PageTTL    time.Duration `mapstructure:"page_ttl"`
}

// BudgetConfig contains the shared token bucket parameters. The
// defaults mirror the upstream's advertised throttle: a 1000 point
// bucket restoring 50 points per second.
type BudgetConfig struct {
	MaxPoints     float64 `mapstructure:"max_points"`
	RefillRate    float64 `mapstructure:"refill_rate"`
	EstimatedCost float64 `mapstructure:"estimated_cost"`
}

// UpstreamConfig contains the catalog API connection settings.
type UpstreamConfig struct {
	URL         string        `mapstructure:"url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxPageSize int           `mapstructure:"max_page_size"`
}

// MetricsConfig contains the rolling stats window settings.
type MetricsConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}
