// Package root contains the root command for the application
package root

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fhartmann/bonscan/internal/config"
	"fhartmann/bonscan/internal/docmgmt"
	"fhartmann/bonscan/internal/engine"
	"fhartmann/bonscan/internal/export"
	"fhartmann/bonscan/internal/merchants"
	"fhartmann/bonscan/internal/moneyutils"
	"fhartmann/bonscan/internal/normalizer"
	"fhartmann/bonscan/internal/override"
	"fhartmann/bonscan/internal/pipeline"
	"fhartmann/bonscan/internal/rawparser"
	"fhartmann/bonscan/internal/store"
	"fhartmann/bonscan/internal/totals"
	"fhartmann/bonscan/internal/vision"
	"fhartmann/bonscan/internal/watcher"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input  string
	Output string
}

var (
	// Log is the shared logger instance for commands
	Log = logrus.New()

	// Cfg holds the resolved application configuration
	Cfg *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "bonscan",
		Short: "A CLI tool to extract, reconcile and archive German retail receipts.",
		Long: `bonscan reads photographed receipts with a vision model, reconciles
the extracted line items against the printed transcript and totals, and
stores the result for price tracking and CSV export.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to bonscan!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			Log = config.ConfigureLogging()

			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Cfg = cfg

			// Hand the configured logger to every package that logs.
			normalizer.SetLogger(Log)
			rawparser.SetLogger(Log)
			moneyutils.SetLogger(Log)
			override.SetLogger(Log)
			totals.SetLogger(Log)
			store.SetLogger(Log)
			export.SetLogger(Log)
			merchants.SetLogger(Log)
			vision.SetLogger(Log)
			docmgmt.SetLogger(Log)
			watcher.SetLogger(Log)
			pipeline.SetLogger(Log)

			return nil
		},
	}

	// SharedFlags are the common flags accessible to all commands
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
}

// EngineConfig builds the engine configuration from the resolved
// application configuration.
func EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if Cfg == nil {
		return cfg
	}
	cfg.AnchorThreshold = Cfg.Engine.AnchorThreshold
	cfg.OverrideThreshold = Cfg.Engine.OverrideThreshold
	cfg.OverrideClampRatio = Cfg.Engine.OverrideClampRatio
	cfg.TotalsToleranceCents = Cfg.Engine.TotalsToleranceCents
	cfg.RawParser.AnchorThreshold = Cfg.Engine.AnchorThreshold
	cfg.RawParser.SplitLayoutStores = Cfg.Engine.SplitLayoutStores
	cfg.RawParser.StoreDetectLines = Cfg.Engine.StoreDetectLines
	return cfg
}
