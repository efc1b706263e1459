// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"sync"
	"time"
)

// AuditEvent captures a security-relevant event for compliance logging.
//
// Events are categorized by type for filtering and alerting:
//   - Research: "research.submit", "research.queued", "research.retry"
//   - Outbox: "outbox.remove", "outbox.flush"
//   - Export: "export.create", "export.signed", "export.unsigned"
//   - Authorization: "authz.denied"
//
// For regulatory traceability, always populate UserID, OrgID, and
// Timestamp. Confidential-mode submissions still produce audit events;
// only outbound telemetry is suppressed for them. Audit events never
// carry question text, confidential or not.
type AuditEvent struct {
	// EventType categorizes the event, format "category.action".
	EventType string

	// Timestamp is when the event occurred (UTC). Implementations set
	// time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID identifies who performed the action.
	UserID string

	// OrgID identifies the tenant organization.
	OrgID string

	// Action is the action performed ("submit", "remove", "retry").
	Action string

	// ResourceType is the category of resource involved.
	ResourceType string

	// ResourceID is the specific resource instance.
	ResourceID string

	// Outcome is "success", "failure", or "denied".
	Outcome string

	// Metadata carries additional event details. Never include
	// question text or payload content here.
	Metadata map[string]any
}

// AuditLogger records audit events.
//
// Implementations must be safe for concurrent use and must not block
// the primary request path; buffer internally and write in the
// background. Log loses on shutdown are acceptable for the open source
// nop implementation; enterprise implementations should flush durably.
type AuditLogger interface {
	// Log records a single audit event. Must return quickly.
	Log(ctx context.Context, event AuditEvent) error

	// Close flushes buffered events and releases resources.
	Close() error
}

// NopAuditLogger discards all events. Default for open source builds.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }

// Close is a no-op.
func (l *NopAuditLogger) Close() error { return nil }

var _ AuditLogger = (*NopAuditLogger)(nil)

// MemoryAuditLogger retains events in memory so tests can assert on the
// audit trail.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditLogger creates an empty MemoryAuditLogger.
func NewMemoryAuditLogger() *MemoryAuditLogger {
	return &MemoryAuditLogger{}
}

// Log appends the event, stamping Timestamp when zero.
func (l *MemoryAuditLogger) Log(_ context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Close is a no-op.
func (l *MemoryAuditLogger) Close() error { return nil }

// Events returns a copy of all recorded events.
func (l *MemoryAuditLogger) Events() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

var _ AuditLogger = (*MemoryAuditLogger)(nil)
