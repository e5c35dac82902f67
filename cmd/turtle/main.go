package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/turtle/internal/config"
	"github.com/michaelbrown/turtle/internal/logging"
)

var (
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "turtle",
	Short: "Turtle - sandboxed turtle graphics for learners",
	Long: `Turtle runs small untrusted drawing scripts in a sandbox and renders the
path they describe.

Scripts call four functions: penDown(color), penUp(), forward(distance) and
rotate(radians). Run "turtle docs" for the full reference.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./turtle.yaml or ~/.turtle/turtle.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// loadConfig reads the config and builds the logger it selects.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
