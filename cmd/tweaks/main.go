package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/tweaks/internal/config"
	"github.com/kalambet/tweaks/internal/persistence"
)

var version = "dev"

var (
	noColor    bool
	storeFlag  string
	formatFlag string
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

var rootCmd = &cobra.Command{
	Use:           "tweaks",
	Short:         "Inspect and edit persisted tweak values",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "store identifier (default from config)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "", "store format: archive or json (default from config)")

	rootCmd.AddCommand(showCmd, getCmd, setCmd, resetCmd, clearCmd, convertCmd, configCmd)
}

func main() {
	err := rootCmd.Execute()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setup loads config and installs the default logger.
func setup() (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, err
	}

	logger, closer, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, err
	}
	if logFile != nil {
		logFile.Close()
	}
	logFile = closer
	slog.SetDefault(logger)

	if !cfg.CLI.Color {
		noColor = true
	}
	return cfg, nil
}

func storeID(cfg config.Config) string {
	if storeFlag != "" {
		return storeFlag
	}
	return cfg.Persistence.Store
}

func storeFormat(cfg config.Config) (persistence.Format, error) {
	if formatFlag != "" {
		return persistence.ParseFormat(formatFlag)
	}
	return cfg.Format()
}

// openStore opens the store selected by flags and config.
func openStore(cfg config.Config, id string) (*persistence.Persistency, error) {
	format, err := storeFormat(cfg)
	if err != nil {
		return nil, err
	}
	p, err := persistence.New(cfg.StoreDir(), id, format)
	if err != nil {
		return nil, fmt.Errorf("opening store %q: %w", id, err)
	}
	return p, nil
}
