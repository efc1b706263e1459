// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/PraetorAI/PraetorLocal/services/counsel/server"
)

var version = "dev"

func main() {
	configPath := os.Getenv("PRAETOR_CONFIG")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("cannot determine home directory: %v", err)
		}
		configPath = filepath.Join(home, ".praetor", "config.yaml")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.Options{ConfigPath: configPath, Version: version}); err != nil {
		log.Fatalf("counsel service failed: %v", err)
	}
}
