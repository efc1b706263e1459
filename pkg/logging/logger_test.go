// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
	require.NotNil(t, logger.Slog())

	// Must not panic
	logger.Info("test message", "key", "value")
	logger.Debug("filtered at default level")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "counsel",
		Quiet:   true,
	})
	logger.Info("persisted entry", "request_id", "req-1")
	require.NoError(t, logger.Close())

	filename := "counsel_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)

	assert.Contains(t, string(data), "persisted entry")
	assert.Contains(t, string(data), `"service":"counsel"`)
}

func TestExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "counsel",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("exported message", "outbox_len", 3)
	logger.Debug("below threshold, not exported")

	// Export is asynchronous
	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 1
	}, time.Second, 10*time.Millisecond)

	entries := exporter.Entries()
	assert.Equal(t, "exported message", entries[0].Message)
	assert.Equal(t, "counsel", entries[0].Service)
	assert.Equal(t, 3, entries[0].Attrs["outbox_len"])
}

func TestWithAddsAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "counsel",
		Quiet:   true,
	})

	child := logger.With("request_id", "req-42")
	child.Info("child entry")
	require.NoError(t, logger.Close())

	filename := "counsel_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"req-42"`)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded := expandPath("~/logs")
	assert.True(t, strings.HasPrefix(expanded, home))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", 3, "dangling-non-string-key"})
	assert.Equal(t, 1, m["a"])
	assert.Equal(t, "two", m["b"])
	assert.Len(t, m, 2)
}
