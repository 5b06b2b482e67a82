// Package config loads and validates the YAML configuration for the
// ezsp-gateway binary: a single Config struct with yaml tags, Load
// applying defaults, and a validate method checked before startup.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Serial struct {
		Port string `yaml:"port"`
		Baud int    `yaml:"baud"`
	} `yaml:"serial"`

	Bootloader struct {
		BannerSuffix string `yaml:"banner_suffix"`
		RunKey       string `yaml:"run_key"`
		UpgradeKey   string `yaml:"upgrade_key"`
	} `yaml:"bootloader"`

	Startup struct {
		ForceFirmwareUpgradeOnInitTimeout bool `yaml:"force_firmware_upgrade_on_init_timeout"`
	} `yaml:"startup"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`

	Status struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"status"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enabled is true")
	}
	if c.Status.Enabled && c.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when status.enabled is true")
	}
	return nil
}

// Load reads path, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Bootloader.BannerSuffix == "" {
		cfg.Bootloader.BannerSuffix = "BL > "
	}
	if cfg.Bootloader.RunKey == "" {
		cfg.Bootloader.RunKey = "1"
	}
	if cfg.Bootloader.UpgradeKey == "" {
		cfg.Bootloader.UpgradeKey = "2"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "ezsp-gateway"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ezsp-gateway"
	}
	if cfg.Status.Listen == "" {
		cfg.Status.Listen = "127.0.0.1:8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// LogLevel and LogFormat are normalized lower-case accessors used by
// newLogger, kept separate from validate so bad values fall back to
// sane defaults instead of failing startup.
func (c *Config) LogLevel() string  { return strings.ToLower(c.Log.Level) }
func (c *Config) LogFormat() string { return strings.ToLower(c.Log.Format) }
