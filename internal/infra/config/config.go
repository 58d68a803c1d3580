// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Speech  SpeechConfig  `yaml:"speech"`
	Console ConsoleConfig `yaml:"console"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig represents logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stderr"` // stdout, stderr or file path
}

// SpeechConfig represents speech engine configuration.
// Engines are tried in order; the first one that can be created is used.
type SpeechConfig struct {
	Engines []EngineConfig `yaml:"engines" default:"[{\"type\":\"espeak\"},{\"type\":\"simulated\"}]" validate:"required,min=1,dive"`
}

// EngineConfig represents a single speech engine configuration.
type EngineConfig struct {
	Type     string         `yaml:"type" json:"type" validate:"required"`
	Settings map[string]any `yaml:"settings" json:"settings"`
}

// ConsoleConfig represents terminal console configuration.
type ConsoleConfig struct {
	NoColor        bool `yaml:"no_color"`
	HideTranscript bool `yaml:"hide_transcript"`
	AutoPlay       bool `yaml:"autoplay"`
}

// MetricsConfig represents the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no config file exists.
func Default() (*Config, error) {
	var cfg Config
	return finalize(&cfg)
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("NARRATOR_ENGINE"); v != "" {
		c.Speech.Engines = []EngineConfig{{Type: v}}
	}
	if v := os.Getenv("NARRATOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NARRATOR_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// EngineTypes returns the configured engine types in order.
func (c *Config) EngineTypes() []string {
	types := make([]string, len(c.Speech.Engines))
	for i, e := range c.Speech.Engines {
		types[i] = e.Type
	}
	return types
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
