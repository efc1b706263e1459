// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QuarantineError marks an agent payload that failed boundary
// validation. Quarantined payloads never reach the trust view reducer
// or the latest-run display; callers log the raw size and reason and
// drop the body.
type QuarantineError struct {
	// Reason is a short machine-friendly cause ("decode", "validate").
	Reason string

	// Detail is the underlying error text.
	Detail string
}

// Error implements the error interface.
func (e *QuarantineError) Error() string {
	return fmt.Sprintf("agent payload quarantined (%s): %s", e.Reason, e.Detail)
}

// DecodeRunResponse converts raw agent-service bytes into a typed
// AgentRunResponse.
//
// Decoding is strict: unknown fields, trailing data, and structural
// mismatches are rejected, and the decoded value is validated before it
// is returned. Loosely-typed payloads are converted into the strong
// model here or not at all; a partially-populated response must never
// propagate past this boundary.
//
// Outputs:
//
//	*AgentRunResponse - The validated response.
//	error - *QuarantineError when the payload is malformed.
func DecodeRunResponse(raw []byte) (*AgentRunResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var run AgentRunResponse
	if err := dec.Decode(&run); err != nil {
		return nil, &QuarantineError{Reason: "decode", Detail: err.Error()}
	}
	// Reject trailing garbage after the JSON document
	if dec.More() {
		return nil, &QuarantineError{Reason: "decode", Detail: "trailing data after response object"}
	}

	if err := validateRun(&run); err != nil {
		return nil, &QuarantineError{Reason: "validate", Detail: err.Error()}
	}

	return &run, nil
}

func validateRun(run *AgentRunResponse) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.Data != nil {
		// A populated payload must carry an assessed level; empty means
		// the agent skipped the assessment and the run is not trustworthy.
		switch run.Data.Risk.Level {
		case RiskLow, RiskMedium, RiskHigh:
		default:
			return fmt.Errorf("risk level %q is not one of LOW, MEDIUM, HIGH", run.Data.Risk.Level)
		}
	}
	if run.TrustPanel != nil && run.TrustPanel.Risk != nil {
		switch run.TrustPanel.Risk.Level {
		case "", RiskLow, RiskMedium, RiskHigh:
		default:
			return fmt.Errorf("trust panel risk level %q is not one of LOW, MEDIUM, HIGH", run.TrustPanel.Risk.Level)
		}
	}
	return nil
}
