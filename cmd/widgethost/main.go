package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/config"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	devMode    bool
)

var rootCmd = &cobra.Command{
	Use:           "widgethost",
	Short:         "WidgetHost - desktop widget supervisor",
	Long:          `WidgetHost discovers installed widgets, runs them in supervised sandboxes and brokers their access to host capabilities.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv(config.FileEnv), "TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Development logging (colored, debug level)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(stateCmd)
}

// loadConfig reads env and the optional TOML file; flags are applied by
// each command afterwards
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if devMode {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
