// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Checkout CheckoutConfig `mapstructure:"checkout" yaml:"checkout"`
	Poller   PollerConfig   `mapstructure:"poller" yaml:"poller"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome instance driven over CDP.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// NavigationTimeout bounds full page loads; SelectorTimeout bounds
	// individual element waits.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	// SettleWait is the quiet period granted after navigations for
	// late-rendering content.
	SettleWait time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
}

// CheckoutConfig carries the defaults for a checkout run.
type CheckoutConfig struct {
	BaseURL            string `mapstructure:"base_url" yaml:"base_url"`
	ArtifactsDir       string `mapstructure:"artifacts_dir" yaml:"artifacts_dir"`
	SampleImage        string `mapstructure:"sample_image" yaml:"sample_image"`
	ShippingPreference string `mapstructure:"shipping_preference" yaml:"shipping_preference"`
}

// PollerConfig controls the job status polling loop.
type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	ServerURL   string        `mapstructure:"server_url" yaml:"server_url"`
}

// ServerConfig controls the job service HTTP API.
type ServerConfig struct {
	ListenAddr    string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" yaml:"shutdown_grace"`
}

// DatabaseConfig holds the optional run-archive connection string.
// An empty URL disables archiving.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults registers the default value for every key so that viper's
// Unmarshal produces a usable config even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "cartpilot")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 60*time.Second)
	v.SetDefault("browser.selector_timeout", 10*time.Second)
	v.SetDefault("browser.settle_wait", 2*time.Second)

	v.SetDefault("checkout.base_url", "http://localhost:5000")
	v.SetDefault("checkout.artifacts_dir", ".")
	v.SetDefault("checkout.shipping_preference", "best_value")

	v.SetDefault("poller.interval", 2*time.Second)
	v.SetDefault("poller.max_attempts", 30)
	v.SetDefault("poller.server_url", "http://localhost:8080")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_grace", 15*time.Second)
}

// Load unmarshals the viper state into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the rest of the system cannot honor.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive, got %s", c.Browser.NavigationTimeout)
	}
	if c.Browser.SelectorTimeout <= 0 {
		return fmt.Errorf("browser.selector_timeout must be positive, got %s", c.Browser.SelectorTimeout)
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive, got %s", c.Poller.Interval)
	}
	if c.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("poller.max_attempts must be positive, got %d", c.Poller.MaxAttempts)
	}
	switch c.Checkout.ShippingPreference {
	case "fastest", "cheapest", "best_value":
	default:
		return fmt.Errorf("checkout.shipping_preference must be one of fastest, cheapest, best_value; got %q", c.Checkout.ShippingPreference)
	}
	return nil
}
