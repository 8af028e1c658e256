package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gyeh/hmscore/internal/model"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for an hmsctl run.
type Config struct {
	DSN       string
	LogFormat string // "text" or "json"

	// BillableKinds is the subset of model.AllChargeKinds that
	// materialize into charge lines. Empty means all.
	BillableKinds []string `yaml:"billable_kinds"`

	// StatementTimeout bounds every statement; 0 disables the bound.
	StatementTimeout time.Duration
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	BillableKinds           []string `yaml:"billable_kinds"`
	StatementTimeoutSeconds int      `yaml:"statement_timeout_seconds"`
}

// Default returns a Config with all charge kinds billable and a 30s
// statement timeout.
func Default() Config {
	return Config{
		LogFormat:        "text",
		BillableKinds:    model.ChargeKindNames(),
		StatementTimeout: 30 * time.Second,
	}
}

// LoadFromFile reads a YAML config file and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	c.BillableKinds = yc.BillableKinds
	if yc.StatementTimeoutSeconds > 0 {
		c.StatementTimeout = time.Duration(yc.StatementTimeoutSeconds) * time.Second
	}
	return c.validateBillableKinds()
}

// validateBillableKinds checks that every entry is a known charge kind
// name. If BillableKinds is empty, it defaults to all kinds.
func (c *Config) validateBillableKinds() error {
	if len(c.BillableKinds) == 0 {
		c.BillableKinds = model.ChargeKindNames()
		return nil
	}
	for _, name := range c.BillableKinds {
		if _, ok := model.ChargeKindByName(name); !ok {
			return fmt.Errorf("unknown charge kind %q in config", name)
		}
	}
	return nil
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return c.validateBillableKinds()
}
