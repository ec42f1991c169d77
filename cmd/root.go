// Package cmd holds the fiscal-engine command line: the HTTP server,
// schema migrations and seeding.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/config"
	"github.com/fiscal-tracker/fiscal-engine/pkg/logging"
)

// version is injected by main from its ldflags value.
var version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "fiscal-engine",
	Short:         "Budget transparency portal with multi-level project approvals",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute(v string) {
	version = v
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.yaml", "Path to the YAML config file")
}

// loadRuntime reads configuration and builds the process logger.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flagConfig, version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
