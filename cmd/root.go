package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foldingvectors/prism/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Multi-perspective document analysis service",
	Long:  "Fans a document out to a set of analytical perspectives via Claude, normalizes the structured results, and serves synthesis views, shareable links, and memo exports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
