// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package connectivity tracks whether the agent service is reachable.
//
// The monitor does no probing of its own. Reachability signals are
// pushed in by whoever observes them: the agent client reports call
// outcomes, platform adapters report network state changes. Only a
// transition publishes an event; repeated reports of the same state
// are absorbed silently. Subscribers react to offline→online by
// flushing the outbox.
package connectivity

import (
	"sync"

	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
)

// Monitor is an observable online/offline boolean.
//
// Thread Safety: safe for concurrent use.
type Monitor struct {
	bus *events.Bus

	mu     sync.Mutex
	online bool
}

// NewMonitor creates a Monitor with the given initial state. No event
// is published for the initial state.
func NewMonitor(bus *events.Bus, initial bool) *Monitor {
	return &Monitor{bus: bus, online: initial}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a reachability observation. A state transition
// publishes a connectivity event on the bus; a repeat is a no-op.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed && m.bus != nil {
		m.bus.Publish(events.TypeConnectivityChanged, events.ConnectivityData{Online: online})
	}
}
