// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PraetorAI/PraetorLocal/services/counsel/server"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the counsel service in the foreground",
	Long: `Starts the counsel service and blocks until interrupted.

The configuration file is created with defaults on first run. Queued
research survives restarts; the outbox is flushed automatically when
the agent service becomes reachable.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "",
		"Path to the configuration file (default ~/.praetor/config.yaml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath := serveConfigPath
	if configPath == "" {
		if env := os.Getenv("PRAETOR_CONFIG"); env != "" {
			configPath = env
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			configPath = filepath.Join(home, ".praetor", "config.yaml")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out.Info("starting counsel service (config: %s)", configPath)
	if err := server.Run(ctx, server.Options{ConfigPath: configPath, Version: version}); err != nil {
		out.Error("service failed: %v", err)
		return err
	}
	out.Success("counsel service stopped")
	return nil
}
