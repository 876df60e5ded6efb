// Package config loads the service configuration from a JSON file with
// environment overrides for secrets and deployment-specific endpoints.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"modwatch/internal/dispatch"
	"modwatch/internal/menu"
)

type DatabaseConfig struct {
	// Driver selects the settings backend: "sqlite" or "postgres".
	Driver string `json:"driver"`
	// Path is the SQLite file location, used when Driver is "sqlite".
	Path string `json:"path"`
	// URL is the Postgres connection string, used when Driver is "postgres".
	URL string `json:"url"`
}

type CacheConfig struct {
	// Backend selects the tenant-state store: "memory" or "redis".
	Backend  string `json:"backend"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type PlatformConfig struct {
	BaseURL        string  `json:"base_url"`
	Token          string  `json:"token"`
	RequestsPerSec float64 `json:"requests_per_sec"`
	Burst          int     `json:"burst"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MonitorConfig struct {
	PeriodSeconds       int `json:"period_seconds"`
	MinSamples          int `json:"min_samples"`
	ForceFloorSeconds   int `json:"force_floor_seconds"`
	ApplyTimeoutSeconds int `json:"apply_timeout_seconds"`
}

type DispatcherConfig struct {
	QueueSize int `json:"queue_size"`
	Workers   int `json:"workers"`
}

type MenuConfig struct {
	LifetimeSeconds int `json:"lifetime_seconds"`
}

// Config is the full service configuration.
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Cache      CacheConfig      `json:"cache"`
	Platform   PlatformConfig   `json:"platform"`
	Gateway    GatewayConfig    `json:"gateway"`
	Monitor    MonitorConfig    `json:"monitor"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Menu       MenuConfig       `json:"menu"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", Path: "modwatch.db"},
		Cache:    CacheConfig{Backend: "memory"},
		Platform: PlatformConfig{RequestsPerSec: 25, Burst: 50},
		Gateway:  GatewayConfig{Host: "0.0.0.0", Port: 8080},
		Monitor: MonitorConfig{
			PeriodSeconds:       8,
			MinSamples:          10,
			ForceFloorSeconds:   60,
			ApplyTimeoutSeconds: 10,
		},
		Dispatcher: DispatcherConfig{
			QueueSize: dispatch.DefaultQueueSize,
			Workers:   dispatch.DefaultWorkers,
		},
		Menu: MenuConfig{LifetimeSeconds: int(menu.DefaultLifetime.Seconds())},
	}
}

// Load reads path (optional), applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployments inject secrets and endpoints without writing
// them into the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MODWATCH_PLATFORM_TOKEN"); v != "" {
		c.Platform.Token = v
	}
	if v := os.Getenv("MODWATCH_PLATFORM_URL"); v != "" {
		c.Platform.BaseURL = v
	}
	if v := os.Getenv("MODWATCH_DATABASE_URL"); v != "" {
		c.Database.Driver = "postgres"
		c.Database.URL = v
	}
	if v := os.Getenv("MODWATCH_REDIS_ADDR"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Addr = v
	}
	if v := os.Getenv("MODWATCH_REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}
	if v := os.Getenv("MODWATCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = port
		}
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	if c.Platform.Token == "" {
		return fmt.Errorf("platform.token is required")
	}
	if c.Platform.RequestsPerSec <= 0 {
		return fmt.Errorf("platform.requests_per_sec must be positive")
	}

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}

	if c.Monitor.PeriodSeconds < 1 {
		return fmt.Errorf("monitor.period_seconds must be at least 1")
	}
	if c.Monitor.MinSamples < 2 {
		return fmt.Errorf("monitor.min_samples must be at least 2")
	}
	if c.Monitor.ForceFloorSeconds < c.Monitor.PeriodSeconds {
		return fmt.Errorf("monitor.force_floor_seconds must cover at least one period")
	}

	if c.Dispatcher.QueueSize < 1 {
		return fmt.Errorf("dispatcher.queue_size must be at least 1")
	}
	if c.Dispatcher.Workers < 1 {
		return fmt.Errorf("dispatcher.workers must be at least 1")
	}

	if c.Menu.LifetimeSeconds < 1 {
		return fmt.Errorf("menu.lifetime_seconds must be at least 1")
	}
	return nil
}

// ListenAddr renders the gateway bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
