// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/fsnotify/fsnotify"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
)

// Manager owns the live configuration: initial load, secret handling,
// and hot reload on file change.
//
// Thread Safety: safe for concurrent use.
type Manager struct {
	path string
	bus  *events.Bus
	log  *logging.Logger

	mu       sync.RWMutex
	current  Config
	agentKey *memguard.Enclave
}

// NewManager creates a Manager for the config file at path. Call Load
// before Current.
func NewManager(path string, bus *events.Bus, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{path: path, bus: bus, log: log}
}

// Load reads the config file, creating it with defaults on first run,
// and seals the agent API key out of the environment into guarded
// memory.
func (m *Manager) Load() error {
	if _, err := os.Stat(m.path); errors.Is(err, os.ErrNotExist) {
		m.log.Info("first run, writing default config", "path", m.path)
		if err := WriteDefault(m.path); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", m.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	m.sealAgentKey(cfg.Agent.APIKeyEnv)
	return nil
}

// sealAgentKey moves the agent API key from the environment into a
// memguard enclave and scrubs the variable.
func (m *Manager) sealAgentKey(envName string) {
	if envName == "" {
		return
	}
	key := os.Getenv(envName)
	if key == "" {
		return
	}
	os.Unsetenv(envName)

	m.mu.Lock()
	m.agentKey = memguard.NewEnclave([]byte(key))
	m.mu.Unlock()
}

// Current returns a copy of the live configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AgentAPIKey opens the sealed key for one use. Empty when no key was
// configured.
func (m *Manager) AgentAPIKey() string {
	m.mu.RLock()
	enclave := m.agentKey
	m.mu.RUnlock()

	if enclave == nil {
		return ""
	}
	buf, err := enclave.Open()
	if err != nil {
		m.log.Error("failed to open sealed agent key", "error", err.Error())
		return ""
	}
	defer buf.Destroy()
	// buf.String() is a zero-copy view into the guarded region, which
	// Destroy unmaps; copy the bytes so the returned string outlives it.
	return string(buf.Bytes())
}

// Watch reloads the configuration when the file changes, until ctx is
// cancelled. A reload that fails validation keeps the previous
// configuration. Each successful reload publishes a config-reloaded
// event.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace the file on save, which
	// drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			m.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("config watcher error", "error", err.Error())
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.log.Warn("config reload failed, keeping previous", "error", err.Error())
		return
	}
	cfg, err := Parse(data)
	if err != nil {
		m.log.Warn("config reload rejected, keeping previous", "error", err.Error())
		return
	}

	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	m.log.Info("configuration reloaded", "path", m.path)
	if m.bus != nil {
		m.bus.Publish(events.TypeConfigReloaded, nil)
	}
}
