// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the counsel service.
//
// This file contains the research submission types. For agent run
// response types see run.go; for boundary decoding see decode.go.
package datatypes

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxQuestionBytes is the maximum size of a research question.
	// Byte length, not rune count, to bound memory on hostile input.
	MaxQuestionBytes = 16 * 1024 // 16KB

	// MaxContextBytes is the maximum size of the free-form matter
	// context accompanying a question.
	MaxContextBytes = 64 * 1024 // 64KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// researchValidate is the validator instance for research datatypes.
// Initialized in init() with custom validators.
var researchValidate *validator.Validate

func init() {
	researchValidate = validator.New()

	_ = researchValidate.RegisterValidation("notblank", validateNotBlank)
	_ = researchValidate.RegisterValidation("maxbytes16k", validateMaxBytes(MaxQuestionBytes))
	_ = researchValidate.RegisterValidation("maxbytes64k", validateMaxBytes(MaxContextBytes))
}

// validateNotBlank rejects strings that are empty or whitespace-only.
// A question of only spaces must fail validation before any network
// call is attempted.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateMaxBytes(limit int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= limit
	}
}

// =============================================================================
// Research Request
// =============================================================================

// ResearchRequest is a legal research question bound for the agent
// execution service. It is also the outbox item: requests that cannot
// be delivered are persisted verbatim and replayed later.
//
// # Fields
//
//   - ID: Assigned by the outbox on enqueue (UUID v4); empty for a
//     fresh submission.
//   - Question: Required, non-blank, max 16KB. The natural-language
//     legal question.
//   - Context: Optional matter context, max 64KB.
//   - ConfidentialMode: When true, outbound telemetry is suppressed
//     and the request is excluded from automatic outbox flushes.
//   - AgentCode / AgentLabel: Which research agent to run and its
//     display name.
//   - AgentSettings: Agent-specific options, passed through opaque.
//   - OrgID / UserID: Caller identity, forwarded for authorization
//     and audit.
//   - EnqueuedAt: Set by the outbox when the item is persisted.
//
// Once stored in the outbox an item is immutable except for removal.
type ResearchRequest struct {
	ID               string            `json:"id,omitempty"`
	Question         string            `json:"question" validate:"required,notblank,maxbytes16k"`
	Context          string            `json:"context,omitempty" validate:"maxbytes64k"`
	ConfidentialMode bool              `json:"confidential_mode"`
	AgentCode        string            `json:"agent_code" validate:"required"`
	AgentLabel       string            `json:"agent_label,omitempty"`
	AgentSettings    map[string]any    `json:"agent_settings,omitempty"`
	OrgID            string            `json:"org_id,omitempty"`
	UserID           string            `json:"user_id,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
	EnqueuedAt       time.Time         `json:"enqueued_at,omitempty"`
}

// Validate checks the request against its validation tags.
//
// A blank question is a validation failure, never a network call: the
// submission orchestrator rejects it before touching connectivity or
// the outbox.
func (r *ResearchRequest) Validate() error {
	return researchValidate.Struct(r)
}

// =============================================================================
// Submission Outcome
// =============================================================================

// SubmissionState describes where a submission ended up.
type SubmissionState string

const (
	// SubmissionQueued means the request was stored in the outbox
	// (offline path or send failure). Not an error state.
	SubmissionQueued SubmissionState = "queued"

	// SubmissionSucceeded means the agent returned a run and it is now
	// the latest displayed run.
	SubmissionSucceeded SubmissionState = "succeeded"
)

// SubmissionResult reports the outcome of a research submission.
type SubmissionResult struct {
	// State is the terminal state of the submission.
	State SubmissionState `json:"state"`

	// Run is the agent run response when State is succeeded.
	Run *AgentRunResponse `json:"run,omitempty"`

	// RequestID is the outbox item ID when State is queued.
	RequestID string `json:"request_id,omitempty"`

	// Message is a user-facing note ("queued while offline", the
	// send failure text).
	Message string `json:"message,omitempty"`
}
