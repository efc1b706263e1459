// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent is the HTTP client for the agent execution service.
//
// The client separates "the service is unreachable" from "the service
// rejected the request": transport failures and gateway errors map to
// ErrAgentUnavailable, which callers treat as an offline signal and
// fall back to the outbox. Application errors keep the service's own
// message. Run payloads are decoded strictly at this boundary;
// malformed responses are quarantined, never handed to callers as
// partial data.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
)

// DefaultTimeout bounds one agent run call. Agent runs do real
// retrieval and analysis; short timeouts would misclassify slow runs
// as outages.
const DefaultTimeout = 60 * time.Second

// ErrAgentUnavailable marks transport-level failures: connection
// refused, timeout, DNS, or a gateway-class status. Callers enqueue
// the request instead of failing the submission.
var ErrAgentUnavailable = errors.New("agent service unavailable")

// Error is an application-level rejection from the agent service. The
// service's own message is preserved for display.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("agent service returned status %d", e.Status)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the agent service root, e.g. "http://localhost:8210".
	BaseURL string

	// APIKey supplies the bearer token per call. Nil or empty result
	// sends no Authorization header. A func so callers can hand out
	// secrets from guarded memory without pinning them here.
	APIKey func() string

	// Timeout bounds one run call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Monitor receives reachability observations from call outcomes.
	// May be nil.
	Monitor *connectivity.Monitor

	Logger *logging.Logger
}

// Client calls the agent execution service.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  func() string
	http    *http.Client
	monitor *connectivity.Monitor
	log     *logging.Logger
}

// NewClient creates a Client. BaseURL is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("agent: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		monitor: cfg.Monitor,
		log:     log,
	}, nil
}

// runRequest is the wire shape of one run submission.
type runRequest struct {
	Question     string            `json:"question"`
	Context      string            `json:"context,omitempty"`
	Confidential bool              `json:"confidential,omitempty"`
	Settings     map[string]any    `json:"settings,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// errorResponse is the agent service's error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Run submits a research request and returns the completed run.
//
// Transport failures and gateway statuses return an error wrapping
// ErrAgentUnavailable. Other non-2xx statuses return *Error with the
// service's message. A 2xx body that fails strict decoding returns
// *datatypes.QuarantineError.
func (c *Client) Run(ctx context.Context, req *datatypes.ResearchRequest) (*datatypes.AgentRunResponse, error) {
	if req == nil {
		return nil, errors.New("agent: request must not be nil")
	}

	ctx, span := otel.Tracer("counsel/agent").Start(ctx, "agent.run",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attribute.String("agent.code", req.AgentCode)))
	defer span.End()

	body, err := json.Marshal(runRequest{
		Question:     req.Question,
		Context:      req.Context,
		Confidential: req.ConfidentialMode,
		Settings:     req.AgentSettings,
		Labels:       req.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/agents/%s/run", c.baseURL, req.AgentCode)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != nil {
		if key := c.apiKey(); key != "" {
			httpReq.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(false)
		c.log.Warn("agent call failed", "agent", req.AgentCode, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	if gatewayStatus(resp.StatusCode) {
		c.observe(false)
		return nil, fmt.Errorf("%w: status %d", ErrAgentUnavailable, resp.StatusCode)
	}
	c.observe(true)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agent: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	run, err := datatypes.DecodeRunResponse(raw)
	if err != nil {
		c.log.Warn("quarantined malformed agent response",
			"agent", req.AgentCode, "error", err.Error())
		return nil, err
	}
	return run, nil
}

// Health probes the agent service's health endpoint and reports the
// outcome to the connectivity monitor.
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("agent: build health request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.observe(false)
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.observe(false)
		return fmt.Errorf("%w: health status %d", ErrAgentUnavailable, resp.StatusCode)
	}
	c.observe(true)
	return nil
}

func (c *Client) observe(online bool) {
	if c.monitor != nil {
		c.monitor.SetOnline(online)
	}
}

// gatewayStatus reports statuses that mean the service itself is not
// answering, as opposed to rejecting this request.
func gatewayStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// errorMessage extracts the service's error message from a response
// body, falling back to the raw body text.
func errorMessage(raw []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
