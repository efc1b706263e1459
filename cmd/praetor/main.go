// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// praetor is the command-line interface to the counsel service:
// start the service, inspect and manage the offline outbox, and
// check the build version.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/PraetorAI/PraetorLocal/pkg/ux"
)

// version is stamped at build time with -ldflags.
var version = "dev"

var (
	serverURL string
	out       = ux.StdoutPrinter()
)

var rootCmd = &cobra.Command{
	Use:   "praetor",
	Short: "Local legal research assistant",
	Long: `praetor manages the local counsel service.

The service accepts legal research questions, forwards them to the
agent-execution service when reachable, and queues them durably when
offline. Queued questions are delivered automatically on reconnect.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the praetor version",
	Run: func(cmd *cobra.Command, args []string) {
		out.Plain("praetor %s", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8200",
		"Base URL of the counsel service")
	rootCmd.AddCommand(serveCmd, outboxCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
