// Package config loads the dashboard's YAML configuration file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/mqtt"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/telemetry"
	"github.com/Marsunpaisti/EspressoRaspberryPi/internal/window"
)

// Config is the dashboard configuration.
type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	HTTPAddr       string        `yaml:"http_addr"`
	Capacity       int           `yaml:"capacity"`
	HorizonSeconds int           `yaml:"horizon_seconds"`
	Tick           time.Duration `yaml:"tick"`
	TUI            bool          `yaml:"tui"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load reads the YAML file at path, applies defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "espresso-dash"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = mqtt.DefaultPrefix
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Capacity == 0 {
		c.Capacity = telemetry.DefaultCapacity
	}
	if c.HorizonSeconds == 0 {
		c.HorizonSeconds = window.DefaultHorizonSeconds
	}
	if c.Tick == 0 {
		c.Tick = time.Second
	}
}

// Validate checks the config after defaults are applied.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Broker)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("broker: unsupported scheme %q", u.Scheme)
	}
	if c.Capacity < 2 {
		return fmt.Errorf("capacity must be at least 2, got %d", c.Capacity)
	}
	if c.HorizonSeconds < 1 {
		return fmt.Errorf("horizon_seconds must be positive, got %d", c.HorizonSeconds)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	return nil
}
