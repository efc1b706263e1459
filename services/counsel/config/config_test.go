// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestParseOverlaysFileOnDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9000
agent:
  base_url: "http://agent.internal:8210"
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://agent.internal:8210", cfg.Agent.BaseURL)
	// Untouched fields keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 60, cfg.Agent.TimeoutSeconds)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 99999\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("logging:\n  level: verbose\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("agent:\n  base_url: \"not a url\"\n"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PRAETOR_PORT", "9100")
	t.Setenv("PRAETOR_LOG_LEVEL", "debug")

	cfg, err := Parse([]byte("server:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManagerFirstRunCreatesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counsel.yaml")
	m := NewManager(path, nil, quietLogger())

	require.NoError(t, m.Load())
	assert.FileExists(t, path)
	assert.Equal(t, Default().Server.Port, m.Current().Server.Port)
}

func TestManagerSealsAgentKey(t *testing.T) {
	t.Setenv("PRAETOR_AGENT_API_KEY", "secret-token")

	path := filepath.Join(t.TempDir(), "counsel.yaml")
	m := NewManager(path, nil, quietLogger())
	require.NoError(t, m.Load())

	assert.Equal(t, "secret-token", m.AgentAPIKey())
	// Sealing scrubs the environment variable.
	assert.Empty(t, os.Getenv("PRAETOR_AGENT_API_KEY"))
	// The key stays available for repeated use.
	assert.Equal(t, "secret-token", m.AgentAPIKey())
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counsel.yaml")

	bus := events.NewBus()
	m := NewManager(path, bus, quietLogger())
	require.NoError(t, m.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		m.Watch(ctx)
	}()

	// Give the watcher a moment to establish.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9500\n"), 0640))

	require.Eventually(t, func() bool {
		return m.Current().Server.Port == 9500
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, bus.RecentByType(events.TypeConfigReloaded))

	cancel()
	<-watchDone
}

func TestWatchKeepsPreviousOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counsel.yaml")

	m := NewManager(path, nil, quietLogger())
	require.NoError(t, m.Load())
	original := m.Current().Server.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0640))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, original, m.Current().Server.Port)
}
