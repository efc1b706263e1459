// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trustview derives the trust/compliance summary shown next to
// a research result.
//
// Derive is a pure projection of (IracPayload, TrustPanel, notices)
// into a display-ready TrustView. Each sub-derivation is a tagged
// variant: when the agent service supplied the rich trust panel data
// the summary is marked SourceRich; when it had to be approximated from
// the payload alone it is marked SourceDegraded. The two paths are
// independently testable and callers can badge degraded data in the UI.
//
// Identical inputs always produce identical output. The package holds
// no state; results are safe to memoize.
package trustview

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
)

// SourceKind tags whether a sub-derivation came from the rich trust
// panel or a payload-only approximation.
type SourceKind string

const (
	// SourceRich means the agent's trust panel supplied the data.
	SourceRich SourceKind = "rich"

	// SourceDegraded means the value was approximated from the IRAC
	// payload because the trust panel (or its field) was absent.
	SourceDegraded SourceKind = "degraded"
)

// ComplianceStatus distinguishes "no issues found" from "compliance
// data was never computed". The two are different states and the UI
// renders them differently.
type ComplianceStatus string

const (
	ComplianceOK          ComplianceStatus = "ok"
	ComplianceIssues      ComplianceStatus = "issues"
	ComplianceUnavailable ComplianceStatus = "unavailable"
)

// TrustView is the normalized, display-ready trust summary.
type TrustView struct {
	Allowlist    AllowlistSummary   `json:"allowlist"`
	Translation  TranslationSummary `json:"translation"`
	BindingRules BindingSummary     `json:"binding_rules"`
	SourceHosts  []HostCount        `json:"source_hosts"`
	Provenance   ProvenanceSummary  `json:"provenance"`
	Compliance   ComplianceSummary  `json:"compliance"`
	Risk         RiskSummary        `json:"risk"`
	Notices      []datatypes.Notice `json:"notices,omitempty"`
}

// AllowlistSummary reports allowlist compliance of the citations.
type AllowlistSummary struct {
	Source SourceKind `json:"source"`

	// NonAllowlisted holds hostnames of violating sources; malformed
	// URLs pass through as their raw string.
	NonAllowlisted []string `json:"non_allowlisted,omitempty"`

	// Clean is true iff NonAllowlisted is empty.
	Clean bool `json:"clean"`
}

// TranslationSummary lists citations flagged as translated or
// foreign-language sources.
type TranslationSummary struct {
	Source   SourceKind `json:"source"`
	Warnings []string   `json:"warnings,omitempty"`
}

// BindingSummary reports binding coverage of the cited rules.
type BindingSummary struct {
	Source     SourceKind `json:"source"`
	Total      int        `json:"total"`
	NonBinding int        `json:"non_binding"`

	// NonBindingCitations lists the non-binding rules' citations on
	// the degraded path; empty on the rich path where only counts are
	// available.
	NonBindingCitations []string `json:"non_binding_citations,omitempty"`
}

// HostCount is one entry of the citation host distribution.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// ClassCount is one entry of the provenance class distribution.
type ClassCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// ProvenanceSummary reports where the cited material came from.
type ProvenanceSummary struct {
	Source SourceKind `json:"source"`

	// Counts lists provenance classes ("official_journal", "case_law",
	// "cached", "secondary") with their citation counts. On the
	// degraded path the classes are URL hostnames instead, mirroring
	// SourceHosts.
	Counts []ClassCount `json:"counts,omitempty"`
}

// ComplianceSummary aggregates external compliance framework issues.
type ComplianceSummary struct {
	Status ComplianceStatus `json:"status"`
	Issues []string         `json:"issues,omitempty"`
}

// RiskSummary carries the risk banner data.
type RiskSummary struct {
	Source       SourceKind          `json:"source"`
	Level        datatypes.RiskLevel `json:"level,omitempty"`
	Why          string              `json:"why,omitempty"`
	HITLRequired bool                `json:"hitl_required"`
}

// cepejViolationText maps CEPEJ charter violation codes to display
// text. Unknown codes pass through raw.
var cepejViolationText = map[string]string{
	"fundamental_rights": "Respect des droits fondamentaux non garanti",
	"non_discrimination": "Risque de discrimination non écarté",
	"quality_security":   "Exigences de qualité et de sécurité non satisfaites",
	"transparency":       "Transparence, impartialité et équité insuffisantes",
	"user_control":       "Maîtrise par l'utilisateur non assurée",
}

// Fallback display strings for compliance issues whose detail is
// missing upstream.
const (
	friaFallback  = "Analyse d'impact sur les droits fondamentaux (FRIA) requise mais non validée"
	cepejFallback = "Charte éthique CEPEJ non respectée"
)

// Derive computes the trust view for a run.
//
// payload and panel may each be nil; every sub-derivation degrades
// gracefully per its fallback chain. notices are deduplicated by
// message text, preserving first-seen order. Callers holding a full
// AgentRunResponse should use DeriveRun, which also threads the
// verification output through the allowlist fallback.
func Derive(payload *datatypes.IracPayload, panel *datatypes.TrustPanel, notices []datatypes.Notice) TrustView {
	return derive(payload, panel, nil, notices)
}

// DeriveRun computes the trust view for a full agent run response.
func DeriveRun(run *datatypes.AgentRunResponse) TrustView {
	if run == nil {
		return derive(nil, nil, nil, nil)
	}
	return derive(run.Data, run.TrustPanel, run.Verification, run.Notices)
}

func derive(payload *datatypes.IracPayload, panel *datatypes.TrustPanel, verification *datatypes.Verification, notices []datatypes.Notice) TrustView {
	return TrustView{
		Allowlist:    deriveAllowlist(panel, verification),
		Translation:  deriveTranslation(payload, panel),
		BindingRules: deriveBinding(payload, panel),
		SourceHosts:  deriveHosts(payload),
		Provenance:   deriveProvenance(payload, panel),
		Compliance:   deriveCompliance(panel),
		Risk:         deriveRisk(payload, panel),
		Notices:      dedupeNotices(notices),
	}
}

// deriveAllowlist prefers the trust panel's precomputed violation list;
// absent that, it extracts hostnames from the run verification's flat
// violations list.
func deriveAllowlist(panel *datatypes.TrustPanel, verification *datatypes.Verification) AllowlistSummary {
	if panel != nil && panel.CitationSummary != nil {
		violations := append([]string(nil), panel.CitationSummary.NonAllowlisted...)
		return AllowlistSummary{
			Source:         SourceRich,
			NonAllowlisted: violations,
			Clean:          len(violations) == 0,
		}
	}

	if verification != nil {
		return DeriveAllowlistFromViolations(verification.AllowlistViolations)
	}

	return AllowlistSummary{Source: SourceDegraded, Clean: true}
}

// DeriveAllowlistFromViolations is the degraded-path allowlist
// derivation over a flat violations list (run verification output).
// Well-formed URLs reduce to their hostname; malformed entries pass
// through as the raw string.
func DeriveAllowlistFromViolations(violations []string) AllowlistSummary {
	hosts := make([]string, 0, len(violations))
	for _, v := range violations {
		hosts = append(hosts, HostOf(v))
	}
	return AllowlistSummary{
		Source:         SourceDegraded,
		NonAllowlisted: hosts,
		Clean:          len(hosts) == 0,
	}
}

// HostOf extracts the hostname of a URL string, or returns the raw
// string when it does not parse as an absolute URL.
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}

func deriveTranslation(payload *datatypes.IracPayload, panel *datatypes.TrustPanel) TranslationSummary {
	if panel != nil && panel.CitationSummary != nil {
		return TranslationSummary{
			Source:   SourceRich,
			Warnings: append([]string(nil), panel.CitationSummary.TranslationWarnings...),
		}
	}

	var warnings []string
	if payload != nil {
		for _, c := range payload.Citations {
			if noteFlagsTranslation(c.Note) {
				label := c.Title
				if label == "" {
					label = c.Note
				}
				warnings = append(warnings, label)
			}
		}
	}
	return TranslationSummary{Source: SourceDegraded, Warnings: warnings}
}

// translationMarkers are the note substrings that flag a translated or
// foreign-language source, matched case-insensitively.
var translationMarkers = []string{"traduction", "translation", "langue"}

func noteFlagsTranslation(note string) bool {
	if note == "" {
		return false
	}
	lower := strings.ToLower(note)
	for _, marker := range translationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func deriveBinding(payload *datatypes.IracPayload, panel *datatypes.TrustPanel) BindingSummary {
	if panel != nil && panel.CitationSummary != nil && panel.CitationSummary.Rules != nil {
		return BindingSummary{
			Source:     SourceRich,
			Total:      panel.CitationSummary.Rules.Total,
			NonBinding: panel.CitationSummary.Rules.NonBinding,
		}
	}

	summary := BindingSummary{Source: SourceDegraded}
	if payload != nil {
		summary.Total = len(payload.Rules)
		for _, r := range payload.Rules {
			if !r.Binding {
				summary.NonBinding++
				summary.NonBindingCitations = append(summary.NonBindingCitations, r.Citation)
			}
		}
	}
	return summary
}

// deriveHosts groups payload citations by URL hostname, counted and
// sorted descending by count. Ties sort ascending by host so the
// result is deterministic. Always payload-derived, independent of the
// trust panel.
func deriveHosts(payload *datatypes.IracPayload) []HostCount {
	if payload == nil {
		return nil
	}

	counts := make(map[string]int)
	for _, c := range payload.Citations {
		if c.URL == "" {
			continue
		}
		counts[HostOf(c.URL)]++
	}
	if len(counts) == 0 {
		return nil
	}

	hosts := make([]HostCount, 0, len(counts))
	for host, count := range counts {
		hosts = append(hosts, HostCount{Host: host, Count: count})
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].Count != hosts[j].Count {
			return hosts[i].Count > hosts[j].Count
		}
		return hosts[i].Host < hosts[j].Host
	})
	return hosts
}

// deriveProvenance prefers the trust panel's class counts; absent
// those, it falls back to the payload host distribution so the UI can
// still show where sources came from. Counts sort descending, ties
// ascending by class, matching deriveHosts.
func deriveProvenance(payload *datatypes.IracPayload, panel *datatypes.TrustPanel) ProvenanceSummary {
	if panel != nil && panel.Provenance != nil && len(panel.Provenance.Counts) > 0 {
		counts := make([]ClassCount, 0, len(panel.Provenance.Counts))
		for class, count := range panel.Provenance.Counts {
			counts = append(counts, ClassCount{Class: class, Count: count})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			return counts[i].Class < counts[j].Class
		})
		return ProvenanceSummary{Source: SourceRich, Counts: counts}
	}

	hosts := deriveHosts(payload)
	if len(hosts) == 0 {
		return ProvenanceSummary{Source: SourceDegraded}
	}
	counts := make([]ClassCount, 0, len(hosts))
	for _, h := range hosts {
		counts = append(counts, ClassCount{Class: h.Host, Count: h.Count})
	}
	return ProvenanceSummary{Source: SourceDegraded, Counts: counts}
}

// deriveCompliance builds the issues list in fixed order: FRIA, CEPEJ,
// consent, Council of Europe. Absence of compliance data yields a
// distinct unavailable status, not an empty success.
func deriveCompliance(panel *datatypes.TrustPanel) ComplianceSummary {
	if panel == nil || panel.Compliance == nil {
		return ComplianceSummary{Status: ComplianceUnavailable}
	}

	c := panel.Compliance
	var issues []string

	if c.FRIA != nil && c.FRIA.Required && !c.FRIA.Validated {
		if len(c.FRIA.Reasons) > 0 {
			issues = append(issues, c.FRIA.Reasons[0])
		} else {
			issues = append(issues, friaFallback)
		}
	}

	if c.CEPEJ != nil && !c.CEPEJ.Passed {
		if len(c.CEPEJ.Violations) > 0 {
			for _, code := range c.CEPEJ.Violations {
				if text, ok := cepejViolationText[code]; ok {
					issues = append(issues, text)
				} else {
					issues = append(issues, code)
				}
			}
		} else {
			issues = append(issues, cepejFallback)
		}
	}

	if c.Consent != nil && c.Consent.Required && !c.Consent.Accepted {
		issues = append(issues, "Consentement requis (version "+c.Consent.Version+") non accepté")
	}

	if c.CouncilOfEurope != nil && !c.CouncilOfEurope.Acknowledged {
		issues = append(issues, "Reconnaissance du Cadre du Conseil de l'Europe en attente (version "+c.CouncilOfEurope.Version+")")
	}

	status := ComplianceOK
	if len(issues) > 0 {
		status = ComplianceIssues
	}
	return ComplianceSummary{Status: status, Issues: issues}
}

func deriveRisk(payload *datatypes.IracPayload, panel *datatypes.TrustPanel) RiskSummary {
	if panel != nil && panel.Risk != nil {
		return RiskSummary{
			Source:       SourceRich,
			Level:        panel.Risk.Level,
			Why:          panel.Risk.Why,
			HITLRequired: panel.Risk.HITLRequired,
		}
	}
	if payload != nil {
		return RiskSummary{
			Source:       SourceDegraded,
			Level:        payload.Risk.Level,
			Why:          payload.Risk.Why,
			HITLRequired: payload.Risk.HITLRequired,
		}
	}
	return RiskSummary{Source: SourceDegraded}
}

// dedupeNotices removes duplicate notices by message text, keeping the
// first occurrence in order.
func dedupeNotices(notices []datatypes.Notice) []datatypes.Notice {
	if len(notices) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(notices))
	out := make([]datatypes.Notice, 0, len(notices))
	for _, n := range notices {
		if _, ok := seen[n.Message]; ok {
			continue
		}
		seen[n.Message] = struct{}{}
		out = append(out, n)
	}
	return out
}
