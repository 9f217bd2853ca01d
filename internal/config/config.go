package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultMinConfidence = 0.8
	defaultIdleTimeout   = 10 * time.Minute
	defaultTSHostname    = "heromissions"
	defaultTSStateDir    = "tsnet-state"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Missions  MissionsConfig  `yaml:"missions"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	Migrations string `yaml:"migrations"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// MissionsConfig controls the exercise catalog and live mission handling.
type MissionsConfig struct {
	CatalogPath   string        `yaml:"catalog_path"`
	MinConfidence float64       `yaml:"min_confidence"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// IsEnabled reports whether mission history is persisted. Defaults to true.
func (d DatabaseConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix HEROMISSIONS_ and underscore-separated paths:
//
//	HEROMISSIONS_SERVER_HOST, HEROMISSIONS_SERVER_PORT,
//	HEROMISSIONS_DB_ENABLED, HEROMISSIONS_DB_HOST, HEROMISSIONS_DB_PORT,
//	HEROMISSIONS_DB_NAME, HEROMISSIONS_DB_USER, HEROMISSIONS_DB_PASSWORD,
//	HEROMISSIONS_DB_SSLMODE, HEROMISSIONS_AUTH_API_KEY,
//	HEROMISSIONS_TAILSCALE_ENABLED, HEROMISSIONS_TAILSCALE_HOSTNAME,
//	HEROMISSIONS_TAILSCALE_STATE_DIR, HEROMISSIONS_CATALOG_PATH,
//	HEROMISSIONS_MIN_CONFIDENCE, HEROMISSIONS_IDLE_TIMEOUT
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEROMISSIONS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HEROMISSIONS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HEROMISSIONS_DB_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Database.Enabled = &enabled
		}
	}
	if v := os.Getenv("HEROMISSIONS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HEROMISSIONS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HEROMISSIONS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HEROMISSIONS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HEROMISSIONS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HEROMISSIONS_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("HEROMISSIONS_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("HEROMISSIONS_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("HEROMISSIONS_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("HEROMISSIONS_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("HEROMISSIONS_CATALOG_PATH"); v != "" {
		cfg.Missions.CatalogPath = v
	}
	if v := os.Getenv("HEROMISSIONS_MIN_CONFIDENCE"); v != "" {
		if c, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Missions.MinConfidence = c
		}
	}
	if v := os.Getenv("HEROMISSIONS_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Missions.IdleTimeout = d
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Missions.MinConfidence == 0 {
		cfg.Missions.MinConfidence = defaultMinConfidence
	}
	if cfg.Missions.IdleTimeout == 0 {
		cfg.Missions.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = defaultTSHostname
	}
	if cfg.Tailscale.StateDir == "" {
		cfg.Tailscale.StateDir = defaultTSStateDir
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.IsEnabled() {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if !(c.Missions.MinConfidence > 0 && c.Missions.MinConfidence < 1) {
		return fmt.Errorf("missions.min_confidence must be in (0, 1), got %v", c.Missions.MinConfidence)
	}
	if c.Missions.IdleTimeout < 0 {
		return fmt.Errorf("missions.idle_timeout must not be negative")
	}
	return nil
}
