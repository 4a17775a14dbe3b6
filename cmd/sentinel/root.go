package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
	"github.com/vaibhaw-/Sentinel/internal/sentinel/logger"
)

var (
	cfgFile string
	Version = "v0.1"
	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel - endpoint security event classification and triage",
		Long:  "Sentinel: classify endpoint telemetry, filter and search the event log, run the console simulation and verify the operator ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				viper.SetConfigFile("config.yaml")
			}
			viper.SetEnvPrefix("SENTINEL")
			viper.AutomaticEnv()
			if err := viper.ReadInConfig(); err != nil {
				// commands run fine on defaults and flags
				fmt.Fprintf(os.Stderr, "Warning: could not read config (%v). Using defaults and flags.\n", err)
			}
			if err := config.Load(viper.GetViper()); err != nil {
				return err
			}

			cfg := config.Get()
			if err := logger.InitLogger(logger.LogConfig{
				Level:        cfg.Logging.Level,
				ConsoleLevel: cfg.Logging.ConsoleLevel,
				File:         cfg.Logging.File,
				MaxSizeMB:    cfg.Logging.MaxSizeMB,
				MaxBackups:   cfg.Logging.MaxBackups,
				MaxAgeDays:   cfg.Logging.MaxAgeDays,
				Development:  cfg.Logging.Development,
			}); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
