package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/config"
	"PennyAI/internal/logger"
)

var (
	configPath string

	cfg *config.Config
	log arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "pennyai",
	Short:         "Collect penny-stock chatter, enrich it with market data and annotate it",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		log = logger.Init(cfg.Logging.Level, cfg.Logging.File)
		log.Debug().
			Str("config", configPath).
			Str("sqlite_path", cfg.Database.SQLitePath).
			Str("data_dir", cfg.Pipeline.DataDir).
			Str("summarizer", cfg.Summarizer.Provider).
			Msg("configuration loaded")
		return nil
	},
}

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the YAML config file")

	rootCmd.AddCommand(runCmd, fetchCmd, preprocessCmd, resolveCmd, mergeCmd, uploadCmd, backfillCmd)
	rootCmd.AddCommand(serveCmd, scheduleCmd, versionCmd)
}
