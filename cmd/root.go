package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "supply-cli",
	Short: "AI model supply catalog research pipeline",
	Long:  "Classifies free-text research requests, drives deep-research sessions, extracts model pricing and capability facts, and merges them into an audited supply catalog.",
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
