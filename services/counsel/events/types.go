// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package events provides the process-wide event bus for the counsel
// service.
//
// The bus replaces ad hoc module-level listener arrays with an explicit
// subscribe/unsubscribe lifecycle: long-lived sessions must be able to
// detach handlers without leaking subscriptions. Connectivity
// transitions, outbox changes, run updates, and user notifications all
// flow through it.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import (
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeConnectivityChanged is emitted when the connectivity monitor
	// observes an online/offline transition.
	TypeConnectivityChanged Type = "connectivity_changed"

	// TypeOutboxEnqueued is emitted when a request enters the outbox.
	TypeOutboxEnqueued Type = "outbox_enqueued"

	// TypeOutboxRemoved is emitted when a request is removed from the
	// outbox explicitly. Flush deliveries are reported in aggregate by
	// TypeOutboxFlushed, not per item.
	TypeOutboxRemoved Type = "outbox_removed"

	// TypeOutboxFlushed is emitted when a flush pass completes.
	TypeOutboxFlushed Type = "outbox_flushed"

	// TypeRunUpdated is emitted when a new agent run becomes the
	// latest displayed run.
	TypeRunUpdated Type = "run_updated"

	// TypeNotification is emitted for transient user-facing messages
	// (success, failure, queued).
	TypeNotification Type = "notification"

	// TypeConfigReloaded is emitted when the config watcher observes a
	// change on disk.
	TypeConfigReloaded Type = "config_reloaded"
)

// Event is a single occurrence broadcast on the bus. The Type
// determines the concrete type of Data; use the typed data structs
// below when emitting.
type Event struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Type is the kind of event.
	Type Type `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Data is event-specific payload.
	Data any `json:"data,omitempty"`
}

// ConnectivityData accompanies TypeConnectivityChanged.
type ConnectivityData struct {
	// Online is the new connectivity state.
	Online bool `json:"online"`
}

// OutboxData accompanies the outbox event types.
type OutboxData struct {
	// RequestID is the affected outbox item, empty for flush events.
	RequestID string `json:"request_id,omitempty"`

	// Pending is the queue depth after the change.
	Pending int `json:"pending"`

	// Delivered is the number of items sent by a flush pass.
	Delivered int `json:"delivered,omitempty"`

	// Failed is the number of items that stayed queued after a flush.
	Failed int `json:"failed,omitempty"`
}

// RunData accompanies TypeRunUpdated.
type RunData struct {
	// RunID identifies the agent run now shown as latest.
	RunID string `json:"run_id"`

	// RiskLevel is the payload risk level, empty when Data was absent.
	RiskLevel string `json:"risk_level,omitempty"`

	// HITLRequired reports whether human review is mandatory.
	HITLRequired bool `json:"hitl_required,omitempty"`
}

// Severity grades a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// NotificationData accompanies TypeNotification. Every failure path in
// the submission pipeline ends in one of these; the front-end renders
// them as dismissible toasts.
type NotificationData struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
