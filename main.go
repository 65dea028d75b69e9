// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-rtu/internal/config"
)

var (
	configFile string
	cfg        *config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "modbus-rtu",
		Short:         "Modbus RTU master and slave over a serial line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			var err error
			cfg, err = config.LoadConfig(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			setupLogger(cfg.Log)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path.")
	flags.StringP("device", "p", "", "Serial port device name.")
	flags.String("driver", "bugst", "Serial driver (bugst, gridx).")
	flags.IntP("baud", "s", 9600, "Serial port speed.")
	flags.String("parity", "N", "Parity (N, E, O).")
	flags.Int("stop-bits", 1, "Stop bits (1, 2).")
	flags.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	flags.StringP("log-file", "L", "", "Log file name ('-' for logging to STDOUT only).")

	rootCmd.AddCommand(newReadCmd(), newWriteCmd(), newServeCmd())
	return rootCmd
}

func addMasterFlags(cmd *cobra.Command) {
	cmd.Flags().Uint8P("slave", "a", 1, "Slave id to address, 0 to broadcast a write.")
	cmd.Flags().DurationP("timeout", "W", time.Second, "Response wait time.")
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
