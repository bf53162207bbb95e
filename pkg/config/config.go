// Package config loads client configuration from a YAML file with
// environment fallbacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cexll/qwen-go/pkg/model/qwen"
)

// Config is the declarative client definition.
type Config struct {
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	UseSDK  bool   `json:"use_sdk" yaml:"use_sdk"`

	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`

	Retry      RetryBlock     `json:"retry" yaml:"retry"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
	Telemetry  TelemetryBlock `json:"telemetry" yaml:"telemetry"`

	SourcePath string `json:"-" yaml:"-"`
}

// RetryBlock tunes the retry engine.
type RetryBlock struct {
	MaxAttempts   int      `json:"max_attempts" yaml:"max_attempts"`
	MinBackoff    Duration `json:"min_backoff" yaml:"min_backoff"`
	MaxBackoff    Duration `json:"max_backoff" yaml:"max_backoff"`
	Multiplier    float64  `json:"multiplier" yaml:"multiplier"`
	TransientOnly bool     `json:"transient_only" yaml:"transient_only"`
}

// TelemetryBlock configures trace export.
type TelemetryBlock struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// Duration unmarshals "1s" style YAML strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.SourcePath = path
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize trims whitespace and applies defaults.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Model = strings.TrimSpace(c.Model)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Model == "" {
		c.Model = "qwen-turbo"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "qwen-go"
	}
}

// Validate rejects configurations the client cannot act on.
func (c *Config) Validate() error {
	if c.Retry.MaxAttempts < 0 {
		return errors.New("config: retry.max_attempts must not be negative")
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return errors.New("config: retry.multiplier must be at least 1")
	}
	if c.Retry.MaxBackoff != 0 && c.Retry.MaxBackoff < c.Retry.MinBackoff {
		return errors.New("config: retry.max_backoff must not be below retry.min_backoff")
	}
	return nil
}

// ClientConfig assembles the qwen client configuration this file describes.
func (c *Config) ClientConfig() qwen.Config {
	retry := qwen.DefaultRetryPolicy()
	if c.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.MinBackoff > 0 {
		retry.MinBackoff = time.Duration(c.Retry.MinBackoff)
	}
	if c.Retry.MaxBackoff > 0 {
		retry.MaxBackoff = time.Duration(c.Retry.MaxBackoff)
	}
	if c.Retry.Multiplier >= 1 {
		retry.Multiplier = c.Retry.Multiplier
	}
	if c.Retry.TransientOnly {
		retry.Classify = qwen.TransientOnly
	}

	opts := qwen.ParseOptions(c.Model, c.Parameters)

	return qwen.Config{
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		UseSDK:         c.UseSDK,
		Options:        opts,
		Retry:          retry,
		RequestTimeout: time.Duration(c.RequestTimeout),
	}
}
