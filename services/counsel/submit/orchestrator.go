// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package submit orchestrates research submissions.
//
// A submission validates first, then routes on connectivity: offline
// goes straight to the outbox, online goes to the agent service. A
// send failure is not a submission failure; the request lands in the
// outbox and the caller gets a queued result. When connectivity comes
// back, the orchestrator flushes the outbox automatically
// (confidential entries excluded; those wait for an explicit retry).
//
// Telemetry is suppressed entirely for confidential submissions. Audit
// events are not: the local audit trail records confidential activity
// too, without question text.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/agent"
	"github.com/PraetorAI/PraetorLocal/services/counsel/audit"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
	"github.com/PraetorAI/PraetorLocal/services/counsel/outbox"
	"github.com/PraetorAI/PraetorLocal/services/counsel/session"
	"github.com/PraetorAI/PraetorLocal/services/counsel/telemetry"
)

// User-facing messages. The product surface is French.
const (
	msgQueuedOffline = "Hors ligne : la demande a été mise en file d'attente."
	msgQueuedFailure = "Le service d'analyse est injoignable : la demande a été mise en file d'attente."
	msgSendFailed    = "L'envoi a échoué : la demande a été mise en file d'attente."
	msgRunSucceeded  = "Analyse terminée."
)

// flushTimeout bounds one automatic flush pass after reconnection.
const flushTimeout = 5 * time.Minute

// ValidationError marks a submission rejected before any network or
// storage activity.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid research request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Runner executes one research request. *agent.Client implements it.
type Runner interface {
	Run(ctx context.Context, req *datatypes.ResearchRequest) (*datatypes.AgentRunResponse, error)
}

// Config wires an Orchestrator. Client, Outbox, Monitor, Latest, and
// Bus are required; Sink, Metrics, and Audit may be nil.
type Config struct {
	Client  Runner
	Outbox  *outbox.Store
	Monitor *connectivity.Monitor
	Latest  *session.Latest
	Bus     *events.Bus
	Sink    telemetry.Sink
	Metrics *telemetry.Metrics
	Audit   *audit.Recorder
	Logger  *logging.Logger
}

// Orchestrator routes research submissions between the agent service
// and the outbox.
//
// Thread Safety: safe for concurrent use. Concurrent submissions are
// allowed; the latest-run holder is last-write-wins.
type Orchestrator struct {
	client  Runner
	outbox  *outbox.Store
	monitor *connectivity.Monitor
	latest  *session.Latest
	bus     *events.Bus
	sink    telemetry.Sink
	metrics *telemetry.Metrics
	audit   *audit.Recorder
	log     *logging.Logger

	subID string
}

// New creates an Orchestrator and subscribes it to connectivity
// transitions: the offline→online edge triggers an automatic outbox
// flush. Call Close to unsubscribe.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil || cfg.Outbox == nil || cfg.Monitor == nil || cfg.Latest == nil || cfg.Bus == nil {
		return nil, errors.New("submit: client, outbox, monitor, latest, and bus are required")
	}
	if cfg.Sink == nil {
		cfg.Sink = telemetry.NopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	o := &Orchestrator{
		client:  cfg.Client,
		outbox:  cfg.Outbox,
		monitor: cfg.Monitor,
		latest:  cfg.Latest,
		bus:     cfg.Bus,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		log:     cfg.Logger,
	}

	o.subID = cfg.Bus.Subscribe(func(event *events.Event) {
		data, ok := event.Data.(events.ConnectivityData)
		if !ok || !data.Online {
			return
		}
		go o.flushOnReconnect()
	}, events.TypeConnectivityChanged)

	return o, nil
}

// Close unsubscribes from the event bus.
func (o *Orchestrator) Close() {
	o.bus.Unsubscribe(o.subID)
}

// Submit runs one research submission end to end.
//
// The only error returns are validation failures (*ValidationError)
// and internal storage failures. A send failure enqueues the request
// and returns a queued result with nil error; the queued state is a
// normal outcome, not an error.
func (o *Orchestrator) Submit(ctx context.Context, req *datatypes.ResearchRequest) (*datatypes.SubmissionResult, error) {
	if req == nil {
		return nil, &ValidationError{Err: errors.New("request must not be nil")}
	}
	if err := req.Validate(); err != nil {
		o.count(ctx, "rejected", req.AgentCode)
		return nil, &ValidationError{Err: err}
	}

	if !o.monitor.Online() {
		result, err := o.enqueue(ctx, req, msgQueuedOffline)
		if err != nil {
			return nil, err
		}
		o.notify(events.SeverityInfo, msgQueuedOffline)
		o.count(ctx, "queued", req.AgentCode)
		o.emitTelemetry(ctx, req, telemetry.Event{
			Kind:      "queued",
			AgentCode: req.AgentCode,
		})
		o.log.Info("offline, research request queued",
			"agent", req.AgentCode, "request_id", req.ID)
		return result, nil
	}

	start := time.Now()
	run, err := o.client.Run(ctx, req)
	elapsed := time.Since(start)
	o.recordCallDuration(ctx, elapsed)

	if err != nil {
		return o.handleSendFailure(ctx, req, err)
	}

	o.latest.Set(run)
	o.notify(events.SeveritySuccess, msgRunSucceeded)
	o.count(ctx, "succeeded", req.AgentCode)
	o.emitTelemetry(ctx, req, telemetry.Event{
		Kind:      "succeeded",
		AgentCode: req.AgentCode,
		RunID:     run.RunID,
		RiskLevel: riskOf(run),
		Duration:  elapsed,
	})
	o.auditEvent(req, "research.submit", "submit", "success", run.RunID)

	o.log.Info("research submission succeeded",
		"agent", req.AgentCode, "run_id", run.RunID, "duration_ms", elapsed.Milliseconds())

	return &datatypes.SubmissionResult{
		State: datatypes.SubmissionSucceeded,
		Run:   run,
	}, nil
}

// handleSendFailure enqueues the failed request and reports the
// failure to the caller as a queued outcome.
func (o *Orchestrator) handleSendFailure(ctx context.Context, req *datatypes.ResearchRequest, sendErr error) (*datatypes.SubmissionResult, error) {
	message := failureMessage(sendErr)

	result, err := o.enqueue(ctx, req, message)
	if err != nil {
		return nil, err
	}

	o.notify(events.SeverityError, message)
	o.count(ctx, "failed", req.AgentCode)
	o.emitTelemetry(ctx, req, telemetry.Event{
		Kind:      "failed",
		AgentCode: req.AgentCode,
	})

	o.log.Warn("research submission failed, request queued",
		"agent", req.AgentCode, "request_id", req.ID, "error", sendErr.Error())
	return result, nil
}

// failureMessage picks the user-facing text for a send failure: the
// agent service's own message when it gave one, a generic fallback
// otherwise.
func failureMessage(err error) string {
	var agentErr *agent.Error
	if errors.As(err, &agentErr) && agentErr.Message != "" {
		return agentErr.Message
	}
	if errors.Is(err, agent.ErrAgentUnavailable) {
		return msgQueuedFailure
	}
	return msgSendFailed
}

// enqueue stores the request and builds the queued result. Side
// effects beyond the audit trail (notifications, telemetry, counters)
// are the caller's: the offline and send-failure paths report
// differently.
func (o *Orchestrator) enqueue(ctx context.Context, req *datatypes.ResearchRequest, message string) (*datatypes.SubmissionResult, error) {
	if err := o.outbox.Enqueue(ctx, req); err != nil {
		return nil, fmt.Errorf("submit: enqueue request: %w", err)
	}
	o.auditEvent(req, "research.queued", "queue", "success", req.ID)

	return &datatypes.SubmissionResult{
		State:     datatypes.SubmissionQueued,
		RequestID: req.ID,
		Message:   message,
	}, nil
}

// FlushOutbox delivers queued requests through the agent client.
// Confidential entries are skipped. Runs delivered during the flush
// update the latest-run holder.
func (o *Orchestrator) FlushOutbox(ctx context.Context) (outbox.FlushResult, error) {
	start := time.Now()
	result, err := o.outbox.Flush(ctx, o.sender())
	if err == nil {
		o.recordFlushDuration(ctx, time.Since(start))
	}
	return result, err
}

// Retry delivers one queued request by ID, including confidential
// entries.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	err := o.outbox.RetryOne(ctx, id, o.sender())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	o.auditEvent(&datatypes.ResearchRequest{ID: id}, "research.retry", "retry", outcome, id)
	return err
}

// sender adapts the agent client for outbox delivery. A delivered run
// becomes the latest run, same as a direct submission.
func (o *Orchestrator) sender() outbox.Sender {
	return outbox.SenderFunc(func(ctx context.Context, req *datatypes.ResearchRequest) error {
		run, err := o.client.Run(ctx, req)
		if err != nil {
			return err
		}
		o.latest.Set(run)
		o.emitTelemetry(ctx, req, telemetry.Event{
			Kind:      "delivered",
			AgentCode: req.AgentCode,
			RunID:     run.RunID,
			RiskLevel: riskOf(run),
		})
		return nil
	})
}

func (o *Orchestrator) flushOnReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	n, err := o.outbox.Len(ctx)
	if err != nil || n == 0 {
		return
	}

	o.log.Info("connectivity restored, flushing outbox", "pending", n)
	if _, err := o.FlushOutbox(ctx); err != nil && !errors.Is(err, outbox.ErrFlushBusy) {
		o.log.Warn("automatic outbox flush failed", "error", err.Error())
	}
}

func (o *Orchestrator) notify(severity events.Severity, message string) {
	o.bus.Publish(events.TypeNotification, events.NotificationData{
		Severity: severity,
		Message:  message,
	})
}

// emitTelemetry records a sink event unless the request is
// confidential.
func (o *Orchestrator) emitTelemetry(ctx context.Context, req *datatypes.ResearchRequest, event telemetry.Event) {
	if req.ConfidentialMode {
		return
	}
	if err := o.sink.Record(ctx, event); err != nil {
		o.log.Debug("telemetry sink write failed", "error", err.Error())
	}
}

func (o *Orchestrator) auditEvent(req *datatypes.ResearchRequest, eventType, action, outcome, resourceID string) {
	if o.audit == nil {
		return
	}
	o.audit.Record(extensions.AuditEvent{
		EventType:    eventType,
		UserID:       req.UserID,
		OrgID:        req.OrgID,
		Action:       action,
		ResourceType: "research_request",
		ResourceID:   resourceID,
		Outcome:      outcome,
		Metadata: map[string]any{
			"agent":        req.AgentCode,
			"confidential": req.ConfidentialMode,
		},
	})
}

func (o *Orchestrator) count(ctx context.Context, outcome, agentCode string) {
	if o.metrics == nil {
		return
	}
	o.metrics.SubmissionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("agent", agentCode),
	))
}

func (o *Orchestrator) recordCallDuration(ctx context.Context, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.AgentCallDuration.Record(ctx, d.Seconds())
}

func (o *Orchestrator) recordFlushDuration(ctx context.Context, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.OutboxFlushDuration.Record(ctx, d.Seconds())
}

func riskOf(run *datatypes.AgentRunResponse) string {
	if run == nil || run.Data == nil {
		return ""
	}
	return string(run.Data.Risk.Level)
}
