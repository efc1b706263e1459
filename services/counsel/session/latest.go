// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session holds per-process research session state.
package session

import (
	"sync"
	"time"

	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
)

// Latest holds the most recent completed run. Concurrent submissions
// are allowed; whichever completes last wins, matching a single
// result surface that always shows the newest answer.
//
// Thread Safety: safe for concurrent use.
type Latest struct {
	bus *events.Bus

	mu        sync.RWMutex
	run       *datatypes.AgentRunResponse
	updatedAt time.Time
}

// NewLatest creates an empty holder. bus may be nil.
func NewLatest(bus *events.Bus) *Latest {
	return &Latest{bus: bus}
}

// Set replaces the held run and publishes a run-updated event. A nil
// run is ignored.
func (l *Latest) Set(run *datatypes.AgentRunResponse) {
	if run == nil {
		return
	}

	l.mu.Lock()
	l.run = run
	l.updatedAt = time.Now()
	l.mu.Unlock()

	if l.bus != nil {
		data := events.RunData{RunID: run.RunID}
		if run.Data != nil {
			data.RiskLevel = string(run.Data.Risk.Level)
			data.HITLRequired = run.Data.Risk.HITLRequired
		}
		l.bus.Publish(events.TypeRunUpdated, data)
	}
}

// Get returns the held run and when it was set. The run is nil before
// the first completion.
func (l *Latest) Get() (*datatypes.AgentRunResponse, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.run, l.updatedAt
}

// Clear discards the held run.
func (l *Latest) Clear() {
	l.mu.Lock()
	l.run = nil
	l.updatedAt = time.Time{}
	l.mu.Unlock()
}
