// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and manage queued research requests",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued research requests in delivery order",
	RunE:  runOutboxList,
}

var outboxRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a queued request without sending it",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutboxRemove,
}

var outboxRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Attempt immediate delivery of one queued request",
	Long: `Attempts to deliver one queued request right now.

Unlike the automatic flush on reconnect, a manual retry also sends
confidential-mode requests.`,
	Args: cobra.ExactArgs(1),
	RunE: runOutboxRetry,
}

func init() {
	outboxCmd.AddCommand(outboxListCmd, outboxRemoveCmd, outboxRetryCmd)
}

var apiClient = &http.Client{Timeout: 30 * time.Second}

// callAPI performs one request against the counsel service and
// decodes the JSON response into v when the status matches.
func callAPI(method, path string, v any) error {
	req, err := http.NewRequest(method, strings.TrimSuffix(serverURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("counsel service unreachable at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected response: HTTP %d", resp.StatusCode)
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(body, v)
}

func runOutboxList(cmd *cobra.Command, args []string) error {
	var resp struct {
		Items []*datatypes.ResearchRequest `json:"items"`
		Count int                          `json:"count"`
	}
	if err := callAPI(http.MethodGet, "/v1/outbox", &resp); err != nil {
		out.Error("%v", err)
		return err
	}

	if resp.Count == 0 {
		out.Info("outbox is empty")
		return nil
	}

	out.Title(fmt.Sprintf("Outbox (%d pending)", resp.Count))
	for _, item := range resp.Items {
		mode := ""
		if item.ConfidentialMode {
			mode = " [confidentiel]"
		}
		out.Plain("%s  %s  %s%s", item.ID,
			item.EnqueuedAt.Local().Format("2006-01-02 15:04"),
			truncate(item.Question, 60), mode)
	}
	return nil
}

func runOutboxRemove(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := callAPI(http.MethodDelete, "/v1/outbox/"+id, nil); err != nil {
		out.Error("%v", err)
		return err
	}
	out.Success("removed %s", id)
	return nil
}

func runOutboxRetry(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := callAPI(http.MethodPost, "/v1/outbox/"+id+"/retry", nil); err != nil {
		out.Error("%v", err)
		return err
	}
	out.Success("delivered %s", id)
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
