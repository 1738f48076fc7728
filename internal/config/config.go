// Package config loads the server configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config is the server configuration.
type Config struct {
	DB         string `yaml:"db"`
	Addr       string `yaml:"addr"`
	AdminUser  string `yaml:"admin_user"`
	UploadsDir string `yaml:"uploads_dir"`

	AdminRecipient      string        `yaml:"admin_recipient"`
	CollectionPoint     string        `yaml:"collection_point"`
	ResaleHoldingPeriod time.Duration `yaml:"resale_holding_period"`
	DispatchInterval    time.Duration `yaml:"dispatch_interval"`

	Log LogConfig `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB:               "najdeno.sqlite3",
		Addr:             ":8080",
		AdminUser:        "admin",
		UploadsDir:       "uploads",
		AdminRecipient:   "admin",
		CollectionPoint:  "the lost and found office",
		DispatchInterval: 30 * time.Second,
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that required settings are present and in range.
func (c Config) Validate() error {
	var problems []string

	if c.DB == "" {
		problems = append(problems, "db is required")
	}
	if c.Addr == "" {
		problems = append(problems, "addr is required")
	}
	if c.AdminUser == "" {
		problems = append(problems, "admin_user is required")
	}
	if c.UploadsDir == "" {
		problems = append(problems, "uploads_dir is required")
	}
	if c.AdminRecipient == "" {
		problems = append(problems, "admin_recipient is required")
	}
	if c.ResaleHoldingPeriod < 0 {
		problems = append(problems, "resale_holding_period cannot be negative")
	}
	if c.DispatchInterval <= 0 {
		problems = append(problems, "dispatch_interval must be positive")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		problems = append(problems, "log limits cannot be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
