package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"riskplane/model"
)

// Strategy selects which theme registry implementation the server runs.
type Strategy string

const (
	StrategyConfig Strategy = "config"
	StrategyTokens Strategy = "tokens"
)

type Config struct {
	DataDir          string               `json:"data_dir"`
	ListenAddr       string               `json:"listen_addr"`
	ThemesDir        string               `json:"themes_dir,omitempty"` // override for the embedded theme assets
	RegistryStrategy Strategy             `json:"registry_strategy"`
	BaseTheme        string               `json:"base_theme"`
	DefaultTheme     string               `json:"default_theme"`
	RefreshSchedules []model.Schedule     `json:"refresh_schedules,omitempty"`
	LastRun          map[string]time.Time `json:"last_run,omitempty"`
}

func Default() Config {
	return Config{
		DataDir:          ".",
		ListenAddr:       ":8080",
		RegistryStrategy: StrategyConfig,
		BaseTheme:        "theme-base",
		DefaultTheme:     "theme-base",
		LastRun:          make(map[string]time.Time),
	}
}

func Load(dataDir string) (Config, error) {
	cfgPath := filepath.Join(dataDir, "riskplane.config")

	f, err := os.Open(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, err
	}

	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.RegistryStrategy != StrategyConfig && cfg.RegistryStrategy != StrategyTokens {
		cfg.RegistryStrategy = def.RegistryStrategy
	}
	if cfg.BaseTheme == "" {
		cfg.BaseTheme = def.BaseTheme
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = def.DefaultTheme
	}
	if cfg.LastRun == nil {
		cfg.LastRun = make(map[string]time.Time)
	}

	return cfg, nil
}

func Save(cfg Config) error {
	cfgPath := filepath.Join(cfg.DataDir, "riskplane.config")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	tmp := cfgPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, cfgPath)
}
