/*
config.go - Server configuration

PURPOSE:
  Loads the YAML config file. ${VAR} placeholders are expanded from the
  environment, and a .env file next to the process is loaded first when
  present. Zero fields get defaults.

EXAMPLE:
  server:
    port: 8080
    allowed_origins: ["https://hall.example.com"]
  database:
    driver: sqlite3
    dsn: data/hallops.db
  redis:
    enabled: true
    address: ${REDIS_ADDR}
  shift:
    variance_tolerance: "1.00"
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port                int      `yaml:"port"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		AllowedOrigins      []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Address    string `yaml:"address"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Shift struct {
		VarianceTolerance string `yaml:"variance_tolerance"`
	} `yaml:"shift"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Metrics.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// Load reads path. A missing file is an error unless path is empty, in
// which case defaults are returned.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	cfg := &Config{}
	cfg.Metrics.Enabled = true
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "sqlite3" && cfg.Database.DSN != ":memory:" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 15
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite3" {
		c.Database.DSN = "data/hallops.db"
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 300
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Shift.VarianceTolerance == "" {
		c.Shift.VarianceTolerance = "1.00"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := c.VarianceTolerance(); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	return nil
}

// VarianceTolerance parses shift.variance_tolerance.
func (c *Config) VarianceTolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Shift.VarianceTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("shift.variance_tolerance: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("shift.variance_tolerance must be >= 0, got %s", d)
	}
	return d, nil
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
