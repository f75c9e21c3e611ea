// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/JakeFAU/multibar"
)

// Config captures all configuration knobs for the multibar binary.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Display DisplayConfig `mapstructure:"display"`
	Channel ChannelConfig `mapstructure:"channel"`
	Server  ServerConfig  `mapstructure:"server"`
	Demo    DemoConfig    `mapstructure:"demo"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	History HistoryConfig `mapstructure:"history"`
}

// LoggingConfig selects the zap profile.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DisplayConfig controls how bars render.
type DisplayConfig struct {
	// Mode is auto, on, or off. Auto draws only on a terminal.
	Mode string `mapstructure:"mode"`
	// Width is the bar body width in cells; 0 lets the renderer pick.
	Width int `mapstructure:"width"`
	// AggregateDescription labels the run-wide bar on the anchor row.
	AggregateDescription string `mapstructure:"aggregate_description"`
	// Color is an ANSI SGR sequence for the filled run; empty disables.
	Color string `mapstructure:"color"`
}

// ChannelConfig sizes the shared update channel.
type ChannelConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DemoConfig shapes the simulated workload.
type DemoConfig struct {
	Workers int `mapstructure:"workers"`
	// StepsMin and StepsMax bound each worker's randomized length.
	StepsMin int `mapstructure:"steps_min"`
	StepsMax int `mapstructure:"steps_max"`
	// StepDelayMs is the mean pause between steps.
	StepDelayMs int `mapstructure:"step_delay_ms"`
	// CancelWorker cancels this worker halfway through; -1 disables.
	CancelWorker int `mapstructure:"cancel_worker"`
}

// PubSubConfig configures the Google Cloud Pub/Sub relay.
type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// HistoryConfig controls durable run history.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	// BufferSize caps events queued for the recorder before drops begin.
	BufferSize int `mapstructure:"buffer_size"`
}

// Load reads configuration from the optional file path and MULTIBAR_*
// environment variables, applies defaults, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MULTIBAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("display.mode", "auto")
	v.SetDefault("display.width", 30)
	v.SetDefault("display.aggregate_description", "all")
	v.SetDefault("channel.capacity", 64)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("demo.workers", 4)
	v.SetDefault("demo.steps_min", 10)
	v.SetDefault("demo.steps_max", 40)
	v.SetDefault("demo.step_delay_ms", 50)
	v.SetDefault("demo.cancel_worker", -1)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.buffer_size", 256)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := c.Display.DisplayMode(); err != nil {
		return err
	}
	if c.Display.Width < 0 {
		return fmt.Errorf("display.width must be >= 0")
	}
	if c.Channel.Capacity <= 0 {
		return fmt.Errorf("channel.capacity must be > 0")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port must be in [1, 65535]")
	}
	if c.Demo.Workers <= 0 {
		return fmt.Errorf("demo.workers must be > 0")
	}
	if c.Demo.StepsMin <= 0 || c.Demo.StepsMax < c.Demo.StepsMin {
		return fmt.Errorf("demo steps range [%d, %d] is invalid", c.Demo.StepsMin, c.Demo.StepsMax)
	}
	if c.Demo.CancelWorker >= c.Demo.Workers {
		return fmt.Errorf("demo.cancel_worker %d is outside the %d demo workers", c.Demo.CancelWorker, c.Demo.Workers)
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.dsn must be set when history is enabled")
	}
	if c.History.BufferSize <= 0 {
		return fmt.Errorf("history.buffer_size must be > 0")
	}
	return nil
}

// DisplayMode resolves the configured mode string.
func (d DisplayConfig) DisplayMode() (multibar.DisplayMode, error) {
	switch strings.ToLower(d.Mode) {
	case "", "auto":
		return multibar.DisplayAuto, nil
	case "on":
		return multibar.DisplayOn, nil
	case "off":
		return multibar.DisplayOff, nil
	default:
		return 0, fmt.Errorf("display.mode must be auto, on, or off, got %q", d.Mode)
	}
}

// Options translates the display section into shared bar options. The
// mode string was validated at load time, so resolution cannot fail here.
func (d DisplayConfig) Options() multibar.Options {
	mode, err := d.DisplayMode()
	if err != nil {
		mode = multibar.DisplayAuto
	}
	return multibar.Options{
		Display: mode,
		Width:   d.Width,
		Color:   d.Color,
	}
}

// RelayConfigured reports whether the Pub/Sub relay can be used.
func (p PubSubConfig) RelayConfigured() bool {
	return p.ProjectID != "" && p.TopicID != ""
}
