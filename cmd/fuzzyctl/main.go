// Command fuzzyctl inspects gram generation and ranks a corpus offline,
// without running fuzzyd, drives load against a running server and manages
// admin API keys.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:          "fuzzyctl",
		Short:        "Offline tools for the fuzzygram n-gram index",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(newGramsCmd(), newQueryCmd(), newLoadTestCmd(), newAPIKeyCmd())
	return root
}
