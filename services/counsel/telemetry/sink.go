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
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Event is one research submission outcome for the timeseries sink.
// It intentionally has no field for question or context text.
type Event struct {
	// Kind is the outcome: "succeeded", "queued", "delivered",
	// "failed", "quarantined".
	Kind string

	// AgentCode identifies the agent that ran (or would have run).
	AgentCode string

	// RunID is set for completed runs.
	RunID string

	// RiskLevel is the completed run's risk grade, when present.
	RiskLevel string

	// Duration is the agent call duration, zero when no call happened.
	Duration time.Duration

	Timestamp time.Time
}

// Sink receives research submission outcomes. Implementations must
// tolerate being called concurrently.
type Sink interface {
	Record(ctx context.Context, e Event) error
	Close()
}

// NopSink discards all events. Used when timeseries telemetry is
// disabled and for confidential-heavy deployments.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, e Event) error { return nil }
func (NopSink) Close()                                    {}

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org"`
	Bucket string `json:"bucket" yaml:"bucket"`
}

// InfluxSink writes research events to an InfluxDB bucket for usage
// dashboards.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewInfluxSink creates a sink over the given InfluxDB instance.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx sink requires url, token, org, and bucket")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Record writes one research event point.
func (s *InfluxSink) Record(ctx context.Context, e Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"kind":  e.Kind,
		"agent": e.AgentCode,
	}
	if e.RiskLevel != "" {
		tags["risk"] = e.RiskLevel
	}

	fields := map[string]interface{}{
		"count": 1,
	}
	if e.RunID != "" {
		fields["run_id"] = e.RunID
	}
	if e.Duration > 0 {
		fields["duration_ms"] = e.Duration.Milliseconds()
	}

	point := influxdb2.NewPoint("research_events", tags, fields, ts)
	if err := s.write.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write research event: %w", err)
	}
	return nil
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
