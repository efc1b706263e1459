// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit records compliance-relevant actions asynchronously.
//
// Handlers call Record and move on; a single worker goroutine drains
// the queue into the configured extensions.AuditLogger so a slow audit
// backend never blocks a submission. Audit events are written for
// confidential submissions too: suppression applies to outbound
// telemetry, not to the local audit trail. Question text never
// appears in an audit event.
package audit

import (
	"context"
	"time"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
	"github.com/PraetorAI/PraetorLocal/pkg/logging"
)

const defaultQueueSize = 256

// Recorder queues audit events for asynchronous delivery.
//
// Thread Safety: safe for concurrent use.
type Recorder struct {
	logger extensions.AuditLogger
	log    *logging.Logger
	queue  chan extensions.AuditEvent
	done   chan struct{}
}

// NewRecorder starts a recorder over the given audit logger. A nil
// logger gets the nop implementation.
func NewRecorder(logger extensions.AuditLogger, log *logging.Logger) *Recorder {
	if logger == nil {
		logger = &extensions.NopAuditLogger{}
	}
	if log == nil {
		log = logging.Default()
	}

	r := &Recorder{
		logger: logger,
		log:    log,
		queue:  make(chan extensions.AuditEvent, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.logger.Log(ctx, event); err != nil {
			r.log.Warn("audit event dropped by backend",
				"event_type", event.EventType, "error", err.Error())
		}
		cancel()
	}
}

// Record queues an event. When the queue is full the event is dropped
// with a warning rather than blocking the caller.
func (r *Recorder) Record(event extensions.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case r.queue <- event:
	default:
		r.log.Warn("audit queue full, event dropped", "event_type", event.EventType)
	}
}

// Close drains the queue and shuts down the worker and the backend.
func (r *Recorder) Close() error {
	close(r.queue)
	<-r.done
	return r.logger.Close()
}
