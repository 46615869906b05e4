package config

import (
	"fmt"

	"github.com/kalambet/tweaks/internal/persistence"
)

type Config struct {
	Storage     StorageConfig
	Persistence PersistenceConfig
	Log         LogConfig
	CLI         CLIConfig
}

type StorageConfig struct {
	DataDir string
}

type PersistenceConfig struct {
	Store  string
	Format string
}

type LogConfig struct {
	Level string
	// File receives a JSON copy of the log when set.
	File string
}

type CLIConfig struct {
	Color           bool
	LoadConcurrency int
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Persistence: PersistenceConfig{
			Store:  "default",
			Format: string(persistence.FormatArchive),
		},
		Log: LogConfig{
			Level: "info",
		},
		CLI: CLIConfig{
			Color:           true,
			LoadConcurrency: 4,
		},
	}
}

// StoreDir returns the directory holding the tweak stores.
func (c Config) StoreDir() string {
	return persistence.DefaultDir(c.Storage.DataDir)
}

// Format returns the configured persistence format.
func (c Config) Format() (persistence.Format, error) {
	return persistence.ParseFormat(c.Persistence.Format)
}

// Load reads configuration from the platform-native backend and
// environment variables.
//
// On macOS the backend is UserDefaults (domain: com.tweaks.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/tweaks/config.json.
//
// Environment variables (TWEAKS_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if _, err := cfg.Format(); err != nil {
		return Config{}, fmt.Errorf("invalid config persistence.format: %w", err)
	}
	if cfg.Persistence.Store == "" {
		return Config{}, fmt.Errorf("missing required config: persistence.store")
	}
	if cfg.CLI.LoadConcurrency < 1 {
		cfg.CLI.LoadConcurrency = 1
	}

	return cfg, nil
}
