package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spindle",
	Short: "Answer questions about the devices on your network",
	Long: `spindle sweeps the configured address ranges with nmap whenever a
question needs fresh data, stores every observation, and replies in plain text.
Questions it cannot classify are forwarded to a completion endpoint.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment overrides apply on top)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	historyCmd.Flags().StringVar(&historyFilter.scanID, "scan-id", "", "Only records from this scan")
	historyCmd.Flags().StringVar(&historyFilter.address, "address", "", "Only records for this IP address")
	historyCmd.Flags().StringVar(&historyFilter.rangeLabel, "range", "", "Only records from this address range")
	historyCmd.Flags().StringVar(&historyFilter.status, "status", "", "Only records with this status (up, down)")
	historyCmd.Flags().DurationVar(&historyFilter.since, "since", 0, "Only records newer than this age, e.g. 24h")
	historyCmd.Flags().IntVar(&historyFilter.limit, "limit", 20, "Maximum rows to print")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
