// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counsel service's instruments. All metrics use the
// "counsel_" prefix.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// SubmissionsTotal counts research submissions by outcome
	// (succeeded, queued, failed, rejected).
	SubmissionsTotal metric.Int64Counter

	// AgentCallDuration records agent run call duration in seconds.
	AgentCallDuration metric.Float64Histogram

	// OutboxFlushDuration records outbox flush pass duration in seconds.
	OutboxFlushDuration metric.Float64Histogram

	// QuarantinesTotal counts agent payloads rejected at the boundary.
	QuarantinesTotal metric.Int64Counter

	// outboxDepth tracks queued outbox entries via callback.
	outboxDepth metric.Int64ObservableGauge
}

// NewMetrics registers the counsel instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.SubmissionsTotal, err = meter.Int64Counter(
		"counsel_submissions_total",
		metric.WithDescription("Total research submissions by outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create submissions_total: %w", err)
	}

	m.AgentCallDuration, err = meter.Float64Histogram(
		"counsel_agent_call_duration_seconds",
		metric.WithDescription("Agent run call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create agent_call_duration: %w", err)
	}

	m.OutboxFlushDuration, err = meter.Float64Histogram(
		"counsel_outbox_flush_duration_seconds",
		metric.WithDescription("Outbox flush pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create outbox_flush_duration: %w", err)
	}

	m.QuarantinesTotal, err = meter.Int64Counter(
		"counsel_quarantines_total",
		metric.WithDescription("Agent payloads rejected at the decode boundary"),
		metric.WithUnit("{payload}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create quarantines_total: %w", err)
	}

	return m, nil
}

// RegisterOutboxDepth wires an observable gauge to the current outbox
// depth. depth is called on every metrics scrape; a depth error skips
// the observation for that scrape.
func (m *Metrics) RegisterOutboxDepth(meter metric.Meter, depth func(ctx context.Context) (int, error)) error {
	gauge, err := meter.Int64ObservableGauge(
		"counsel_outbox_depth",
		metric.WithDescription("Research requests waiting in the outbox"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("create outbox_depth: %w", err)
	}
	m.outboxDepth = gauge

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		n, err := depth(ctx)
		if err != nil {
			return nil
		}
		o.ObserveInt64(gauge, int64(n))
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("register outbox_depth callback: %w", err)
	}
	return nil
}
