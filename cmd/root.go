package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "carelog",
	Short: "Care record extraction from free-form notes",
	Long:  "Turns spoken-style caregiver notes into structured care records via Claude, with editable field schemas, record history, and a Q&A assistant over the stored data.",
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
