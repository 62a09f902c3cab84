// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"

	"github.com/ffutop/crow-host/internal/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "crowctl",
	Short: "Talk to Crow devices over a serial port",
	Long: `crowctl sends Crow commands to devices on a shared serial line, emulates
devices for testing, and manages per-address line settings.

Example usage:
  crowctl send --device /dev/ttyUSB0 --address 1 --port 32 PING
  crowctl serve --device /dev/ttyUSB1 --addresses 1,2,5-10
  crowctl settings set --device /dev/ttyUSB0 --address all --baud 230400`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File, _ = cmd.Flags().GetString("log-file")
		}
		setupLogger(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file path (default stderr)")
}
