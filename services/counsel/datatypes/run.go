// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Agent run response model.
//
// These types mirror the wire format of the agent execution service.
// Responses are decoded strictly at the boundary (decode.go) and are
// treated as immutable once accepted; the trust view reducer is a pure
// projection over them.
package datatypes

// RiskLevel grades an IRAC analysis.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// AgentRunResponse is the full result of one agent run.
//
// Data may be nil before any run completes; TrustPanel and each of its
// sub-objects may be independently absent. Consumers must degrade
// gracefully (see the trustview package).
type AgentRunResponse struct {
	RunID        string         `json:"run_id" validate:"required"`
	Agent        AgentRef       `json:"agent"`
	Data         *IracPayload   `json:"data,omitempty"`
	Plan         []string       `json:"plan,omitempty"`
	ToolLogs     []ToolLog      `json:"tool_logs,omitempty"`
	Notices      []Notice       `json:"notices,omitempty"`
	Reused       bool           `json:"reused,omitempty"`
	Verification *Verification  `json:"verification,omitempty"`
	TrustPanel   *TrustPanel    `json:"trust_panel,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
}

// AgentRef identifies the agent that produced a run.
type AgentRef struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

// ToolLog records one tool invocation made during the run.
type ToolLog struct {
	Tool       string `json:"tool"`
	Summary    string `json:"summary,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Notice is a transient message attached to a run by the agent
// ("source unavailable, used cached copy"). Display deduplicates by
// Message, first occurrence wins.
type Notice struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

// Verification carries the raw verification output of the run. It is
// the degraded-path source for allowlist checking when the trust panel
// is absent.
type Verification struct {
	// AllowlistViolations lists citation URLs (or raw strings when the
	// URL failed to parse upstream) that are not on the allowlist.
	AllowlistViolations []string `json:"allowlist_violations,omitempty"`

	// Checked is the number of citations verified.
	Checked int `json:"checked,omitempty"`
}

// =============================================================================
// IRAC Payload
// =============================================================================

// IracPayload is the structured legal analysis: Issue, Rules,
// Application, Conclusion, plus jurisdiction, citations, and risk.
type IracPayload struct {
	Jurisdiction Jurisdiction   `json:"jurisdiction"`
	Issue        string         `json:"issue"`
	Rules        []Rule         `json:"rules"`
	Application  string         `json:"application"`
	Conclusion   string         `json:"conclusion"`
	Citations    []Citation     `json:"citations"`
	Risk         RiskAssessment `json:"risk"`
}

// Jurisdiction scopes the analysis.
type Jurisdiction struct {
	Country string `json:"country"`
	EU      bool   `json:"eu,omitempty"`
	OHADA   bool   `json:"ohada,omitempty"`
}

// Rule is a single legal rule backing the analysis.
type Rule struct {
	Citation      string `json:"citation"`
	SourceURL     string `json:"source_url,omitempty"`
	Binding       bool   `json:"binding"`
	EffectiveDate string `json:"effective_date,omitempty"`
}

// Citation is a cited authority.
type Citation struct {
	Title            string `json:"title"`
	CourtOrPublisher string `json:"court_or_publisher,omitempty"`
	Date             string `json:"date,omitempty"`
	URL              string `json:"url,omitempty"`
	Note             string `json:"note,omitempty"`
}

// RiskAssessment scores the analysis and gates human review.
type RiskAssessment struct {
	Level        RiskLevel `json:"level" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Why          string    `json:"why,omitempty"`
	HITLRequired bool      `json:"hitl_required"`
}

// =============================================================================
// Trust Panel
// =============================================================================

// TrustPanel is the rich trust/compliance summary computed server-side
// by the agent service. Every sub-object may be absent independently;
// nil means "not computed", which is distinct from an empty result.
type TrustPanel struct {
	CitationSummary *CitationSummary `json:"citation_summary,omitempty"`
	Provenance      *Provenance      `json:"provenance,omitempty"`
	Risk            *RiskAssessment  `json:"risk,omitempty"`
	Compliance      *TrustCompliance `json:"compliance,omitempty"`
}

// CitationSummary aggregates citation-level checks.
type CitationSummary struct {
	// NonAllowlisted lists hostnames (or raw strings for malformed
	// URLs) of cited sources outside the allowlist.
	NonAllowlisted []string `json:"non_allowlisted,omitempty"`

	// TranslationWarnings lists citations flagged as translations or
	// foreign-language sources.
	TranslationWarnings []string `json:"translation_warnings,omitempty"`

	// Rules summarizes binding coverage of the payload rules.
	Rules *RuleSummary `json:"rules,omitempty"`
}

// RuleSummary counts binding versus non-binding rules.
type RuleSummary struct {
	Total      int `json:"total"`
	NonBinding int `json:"non_binding"`
}

// Provenance breaks down where cited material came from.
type Provenance struct {
	// Counts maps a provenance class ("official_journal", "case_law",
	// "cached", "secondary") to the number of citations in it.
	Counts map[string]int `json:"counts,omitempty"`
}

// TrustCompliance carries the pass/fail status of external compliance
// frameworks. The counsel service surfaces these; it never computes
// them.
type TrustCompliance struct {
	FRIA            *FRIAStatus    `json:"fria,omitempty"`
	CEPEJ           *CEPEJStatus   `json:"cepej,omitempty"`
	Consent         *ConsentStatus `json:"consent,omitempty"`
	CouncilOfEurope *CoEStatus     `json:"council_of_europe,omitempty"`
}

// FRIAStatus reports Fundamental Rights Impact Assessment state.
type FRIAStatus struct {
	Required  bool     `json:"required"`
	Validated bool     `json:"validated"`
	Reasons   []string `json:"reasons,omitempty"`
}

// CEPEJStatus reports CEPEJ ethical-charter evaluation state.
type CEPEJStatus struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}

// ConsentStatus reports user consent state for the active policy
// version.
type ConsentStatus struct {
	Required bool   `json:"required"`
	Accepted bool   `json:"accepted"`
	Version  string `json:"version,omitempty"`
}

// CoEStatus reports Council of Europe AI-framework acknowledgment.
type CoEStatus struct {
	Acknowledged bool   `json:"acknowledged"`
	Version      string `json:"version,omitempty"`
}
