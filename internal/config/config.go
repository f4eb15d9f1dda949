package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Game     GameConfig     `json:"game"`
	Session  SessionConfig  `json:"session"`
	Security SecurityConfig `json:"security"`
	App      AppConfig      `json:"app"`

	path string
	mu   sync.RWMutex
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// AdminKey gates the security dashboard. Loaded from ADMIN_KEY when set;
	// an empty key disables the dashboard entirely.
	AdminKey string `json:"adminKey"`
}

type GameConfig struct {
	WorldSize        int     `json:"worldSize"`
	MineDensity      float64 `json:"mineDensity"`
	FlagTokenDensity float64 `json:"flagTokenDensity"`
	SpawnPoints      int     `json:"spawnPoints"`
	SpawnMargin      int     `json:"spawnMargin"`
	ExplosionRadius  int     `json:"explosionRadius"`
	ChainDelayMs     int     `json:"chainDelayMs"`
	FlagsPerToken    int     `json:"flagsPerToken"`
	// Seed 0 selects a random seed at boot.
	Seed int64 `json:"seed"`
}

type SessionConfig struct {
	IdleTimeoutSec   int `json:"idleTimeoutSec"`
	MaxAgeHours      int `json:"maxAgeHours"`
	SweepIntervalSec int `json:"sweepIntervalSec"`

	// Secret is never written to disk. Loaded from SESSION_SECRET or
	// generated at boot.
	Secret string `json:"-"`
}

type SecurityConfig struct {
	MoveLimit         int `json:"moveLimit"`
	FlipLimit         int `json:"flipLimit"`
	FlagLimit         int `json:"flagLimit"`
	UnflagLimit       int `json:"unflagLimit"`
	GlobalLimit       int `json:"globalLimit"`
	WindowSec         int `json:"windowSec"`
	ReplayWindowMs    int `json:"replayWindowMs"`
	DuplicateWindowMs int `json:"duplicateWindowMs"`
	RetentionMin      int `json:"retentionMin"`
	ReplayStrikeLimit int `json:"replayStrikeLimit"`
}

type AppConfig struct {
	LogLevel string `json:"logLevel"`
}

func configDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "data"), nil
}

func Load() (*Config, error) {
	dir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(dir, "config.json")
	cfg := Defaults()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("save default config: %w", saveErr)
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the deployment environment override file settings.
func (c *Config) applyEnv() {
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := os.Getenv("MINEGRID_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MINEGRID_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config tmp: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Server.Port)
	}
	if c.Game.WorldSize < 16 {
		return fmt.Errorf("world size %d too small", c.Game.WorldSize)
	}
	if c.Game.MineDensity <= 0 || c.Game.MineDensity >= 0.5 {
		return fmt.Errorf("mine density %.3f out of range (0, 0.5)", c.Game.MineDensity)
	}
	if c.Game.FlagTokenDensity < 0 || c.Game.FlagTokenDensity >= 0.5 {
		return fmt.Errorf("flag token density %.3f out of range [0, 0.5)", c.Game.FlagTokenDensity)
	}
	if c.Game.SpawnPoints < 1 {
		return fmt.Errorf("spawn points must be at least 1")
	}
	if c.Game.SpawnMargin*2 >= c.Game.WorldSize {
		return fmt.Errorf("spawn margin %d too large for world size %d", c.Game.SpawnMargin, c.Game.WorldSize)
	}
	if c.Game.ExplosionRadius < 1 {
		return fmt.Errorf("explosion radius must be at least 1")
	}
	if c.Session.IdleTimeoutSec < 1 {
		return fmt.Errorf("session idle timeout must be at least 1 second")
	}
	if c.Security.WindowSec < 1 {
		return fmt.Errorf("rate limit window must be at least 1 second")
	}
	if c.Security.GlobalLimit < 1 {
		return fmt.Errorf("global action limit must be at least 1")
	}
	return nil
}

func (c *Config) GetPath() string {
	return c.path
}

func (c *Config) LogDir() string {
	return filepath.Join(filepath.Dir(c.path), "logs")
}

func (c *Config) DBPath() string {
	return filepath.Join(filepath.Dir(c.path), "minegrid.db")
}
