// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trustview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
)

func samplePayload() *datatypes.IracPayload {
	return &datatypes.IracPayload{
		Jurisdiction: datatypes.Jurisdiction{Country: "FR", EU: true},
		Issue:        "Prescription de l'action en paiement",
		Rules: []datatypes.Rule{
			{Citation: "Art. 2224 C. civ.", SourceURL: "https://www.legifrance.gouv.fr/a", Binding: true},
			{Citation: "Doctrine X", SourceURL: "https://revue.example.org/b", Binding: false},
			{Citation: "Art. L110-4 C. com.", SourceURL: "https://www.legifrance.gouv.fr/c", Binding: true},
		},
		Application: "...",
		Conclusion:  "...",
		Citations: []datatypes.Citation{
			{Title: "Cass. com., 26 janv. 2016", URL: "https://www.legifrance.gouv.fr/juri/1"},
			{Title: "Cass. civ. 1re, 9 juin 2017", URL: "https://www.legifrance.gouv.fr/juri/2"},
			{Title: "CJUE, C-123/20", URL: "https://curia.europa.eu/x", Note: "Traduction non officielle"},
			{Title: "Blog note", URL: "::not a url::"},
		},
		Risk: datatypes.RiskAssessment{Level: datatypes.RiskMedium, Why: "jurisprudence partagée", HITLRequired: false},
	}
}

func richPanel() *datatypes.TrustPanel {
	return &datatypes.TrustPanel{
		CitationSummary: &datatypes.CitationSummary{
			NonAllowlisted:      []string{"revue.example.org"},
			TranslationWarnings: []string{"CJUE, C-123/20"},
			Rules:               &datatypes.RuleSummary{Total: 3, NonBinding: 1},
		},
		Risk: &datatypes.RiskAssessment{Level: datatypes.RiskHigh, Why: "vérification incomplète", HITLRequired: true},
		Compliance: &datatypes.TrustCompliance{
			FRIA:            &datatypes.FRIAStatus{Required: true, Validated: true},
			CEPEJ:           &datatypes.CEPEJStatus{Passed: true},
			Consent:         &datatypes.ConsentStatus{Required: true, Accepted: true, Version: "2.1"},
			CouncilOfEurope: &datatypes.CoEStatus{Acknowledged: true, Version: "1.0"},
		},
	}
}

func TestDeriveIsPure(t *testing.T) {
	payload := samplePayload()
	panel := richPanel()
	notices := []datatypes.Notice{{Message: "a"}, {Message: "b"}, {Message: "a"}}

	first := Derive(payload, panel, notices)
	second := Derive(payload, panel, notices)

	assert.Equal(t, first, second, "identical inputs must yield structurally identical output")
}

func TestDeriveAllowlistRichPath(t *testing.T) {
	t.Run("clean when panel reports no violations", func(t *testing.T) {
		panel := richPanel()
		panel.CitationSummary.NonAllowlisted = nil
		view := Derive(samplePayload(), panel, nil)
		assert.Equal(t, SourceRich, view.Allowlist.Source)
		assert.True(t, view.Allowlist.Clean)
	})

	t.Run("one violation flips clean", func(t *testing.T) {
		view := Derive(samplePayload(), richPanel(), nil)
		assert.False(t, view.Allowlist.Clean)
		assert.Equal(t, []string{"revue.example.org"}, view.Allowlist.NonAllowlisted)
	})
}

func TestDeriveAllowlistDegradedPath(t *testing.T) {
	t.Run("hostnames extracted from well-formed URLs", func(t *testing.T) {
		summary := DeriveAllowlistFromViolations([]string{"https://doctnet.example.com/article/9"})
		assert.Equal(t, SourceDegraded, summary.Source)
		assert.Equal(t, []string{"doctnet.example.com"}, summary.NonAllowlisted)
		assert.False(t, summary.Clean)
	})

	t.Run("malformed URL passes through raw", func(t *testing.T) {
		summary := DeriveAllowlistFromViolations([]string{"::весь мир::"})
		assert.Equal(t, []string{"::весь мир::"}, summary.NonAllowlisted)
	})

	t.Run("empty list is clean", func(t *testing.T) {
		summary := DeriveAllowlistFromViolations(nil)
		assert.True(t, summary.Clean)
	})

	t.Run("verification feeds fallback when panel absent", func(t *testing.T) {
		run := &datatypes.AgentRunResponse{
			RunID:        "r1",
			Data:         samplePayload(),
			Verification: &datatypes.Verification{AllowlistViolations: []string{"https://revue.example.org/b"}},
		}
		view := DeriveRun(run)
		assert.Equal(t, SourceDegraded, view.Allowlist.Source)
		assert.Equal(t, []string{"revue.example.org"}, view.Allowlist.NonAllowlisted)
	})
}

func TestDeriveTranslation(t *testing.T) {
	t.Run("rich path uses panel warnings", func(t *testing.T) {
		view := Derive(samplePayload(), richPanel(), nil)
		assert.Equal(t, SourceRich, view.Translation.Source)
		assert.Equal(t, []string{"CJUE, C-123/20"}, view.Translation.Warnings)
	})

	t.Run("degraded path scans citation notes", func(t *testing.T) {
		payload := samplePayload()
		payload.Citations = append(payload.Citations,
			datatypes.Citation{Title: "US case", Note: "English TRANSLATION provided"},
			datatypes.Citation{Title: "OHADA act", Note: "Langue originale : français"},
			datatypes.Citation{Title: "Clean", Note: "commentaire"},
		)
		view := Derive(payload, nil, nil)
		assert.Equal(t, SourceDegraded, view.Translation.Source)
		assert.Equal(t, []string{"CJUE, C-123/20", "US case", "OHADA act"}, view.Translation.Warnings)
	})
}

func TestDeriveBinding(t *testing.T) {
	t.Run("rich path uses panel counts", func(t *testing.T) {
		view := Derive(samplePayload(), richPanel(), nil)
		assert.Equal(t, SourceRich, view.BindingRules.Source)
		assert.Equal(t, 3, view.BindingRules.Total)
		assert.Equal(t, 1, view.BindingRules.NonBinding)
		assert.Empty(t, view.BindingRules.NonBindingCitations)
	})

	t.Run("degraded path filters payload rules", func(t *testing.T) {
		view := Derive(samplePayload(), nil, nil)
		assert.Equal(t, SourceDegraded, view.BindingRules.Source)
		assert.Equal(t, 3, view.BindingRules.Total)
		assert.Equal(t, 1, view.BindingRules.NonBinding)
		assert.Equal(t, []string{"Doctrine X"}, view.BindingRules.NonBindingCitations)
	})
}

func TestDeriveHosts(t *testing.T) {
	view := Derive(samplePayload(), nil, nil)

	require.Len(t, view.SourceHosts, 3)
	assert.Equal(t, HostCount{Host: "www.legifrance.gouv.fr", Count: 2}, view.SourceHosts[0])
	// Ties sort by host for determinism
	assert.Equal(t, HostCount{Host: "::not a url::", Count: 1}, view.SourceHosts[1])
	assert.Equal(t, HostCount{Host: "curia.europa.eu", Count: 1}, view.SourceHosts[2])
}

func TestDeriveProvenance(t *testing.T) {
	t.Run("rich path surfaces panel class counts", func(t *testing.T) {
		panel := richPanel()
		panel.Provenance = &datatypes.Provenance{
			Counts: map[string]int{"official_journal": 3, "cached": 1},
		}
		view := Derive(samplePayload(), panel, nil)

		assert.Equal(t, SourceRich, view.Provenance.Source)
		require.Len(t, view.Provenance.Counts, 2)
		assert.Equal(t, ClassCount{Class: "official_journal", Count: 3}, view.Provenance.Counts[0])
		assert.Equal(t, ClassCount{Class: "cached", Count: 1}, view.Provenance.Counts[1])
	})

	t.Run("rich path ties sort by class", func(t *testing.T) {
		panel := richPanel()
		panel.Provenance = &datatypes.Provenance{
			Counts: map[string]int{"secondary": 2, "case_law": 2},
		}
		view := Derive(nil, panel, nil)

		require.Len(t, view.Provenance.Counts, 2)
		assert.Equal(t, "case_law", view.Provenance.Counts[0].Class)
		assert.Equal(t, "secondary", view.Provenance.Counts[1].Class)
	})

	t.Run("degraded path falls back to host distribution", func(t *testing.T) {
		view := Derive(samplePayload(), nil, nil)

		assert.Equal(t, SourceDegraded, view.Provenance.Source)
		require.Len(t, view.Provenance.Counts, 3)
		assert.Equal(t, ClassCount{Class: "www.legifrance.gouv.fr", Count: 2}, view.Provenance.Counts[0])
	})

	t.Run("empty panel counts also degrade", func(t *testing.T) {
		panel := richPanel()
		panel.Provenance = &datatypes.Provenance{}
		view := Derive(samplePayload(), panel, nil)
		assert.Equal(t, SourceDegraded, view.Provenance.Source)
	})

	t.Run("nil payload and panel yield empty degraded summary", func(t *testing.T) {
		view := Derive(nil, nil, nil)
		assert.Equal(t, SourceDegraded, view.Provenance.Source)
		assert.Empty(t, view.Provenance.Counts)
	})
}

func TestDeriveCompliance(t *testing.T) {
	t.Run("absent compliance is unavailable, not ok", func(t *testing.T) {
		view := Derive(samplePayload(), nil, nil)
		assert.Equal(t, ComplianceUnavailable, view.Compliance.Status)
		assert.Empty(t, view.Compliance.Issues)

		panelNoCompliance := richPanel()
		panelNoCompliance.Compliance = nil
		view = Derive(samplePayload(), panelNoCompliance, nil)
		assert.Equal(t, ComplianceUnavailable, view.Compliance.Status)
	})

	t.Run("all frameworks satisfied is ok", func(t *testing.T) {
		view := Derive(samplePayload(), richPanel(), nil)
		assert.Equal(t, ComplianceOK, view.Compliance.Status)
		assert.Empty(t, view.Compliance.Issues)
	})

	t.Run("issues assemble in fixed order", func(t *testing.T) {
		panel := richPanel()
		panel.Compliance = &datatypes.TrustCompliance{
			FRIA:            &datatypes.FRIAStatus{Required: true, Validated: false, Reasons: []string{"Traitement de données sensibles"}},
			CEPEJ:           &datatypes.CEPEJStatus{Passed: false, Violations: []string{"transparency", "mystery_code"}},
			Consent:         &datatypes.ConsentStatus{Required: true, Accepted: false, Version: "2.1"},
			CouncilOfEurope: &datatypes.CoEStatus{Acknowledged: false, Version: "1.0"},
		}
		view := Derive(samplePayload(), panel, nil)

		require.Equal(t, ComplianceIssues, view.Compliance.Status)
		require.Len(t, view.Compliance.Issues, 5)
		assert.Equal(t, "Traitement de données sensibles", view.Compliance.Issues[0])
		assert.Equal(t, cepejViolationText["transparency"], view.Compliance.Issues[1])
		assert.Equal(t, "mystery_code", view.Compliance.Issues[2], "unknown codes pass through raw")
		assert.Contains(t, view.Compliance.Issues[3], "version 2.1")
		assert.Contains(t, view.Compliance.Issues[4], "version 1.0")
	})

	t.Run("fallback messages when detail missing", func(t *testing.T) {
		panel := richPanel()
		panel.Compliance = &datatypes.TrustCompliance{
			FRIA:  &datatypes.FRIAStatus{Required: true, Validated: false},
			CEPEJ: &datatypes.CEPEJStatus{Passed: false},
		}
		view := Derive(samplePayload(), panel, nil)
		require.Len(t, view.Compliance.Issues, 2)
		assert.Equal(t, friaFallback, view.Compliance.Issues[0])
		assert.Equal(t, cepejFallback, view.Compliance.Issues[1])
	})
}

func TestDeriveRisk(t *testing.T) {
	t.Run("panel risk preferred", func(t *testing.T) {
		view := Derive(samplePayload(), richPanel(), nil)
		assert.Equal(t, SourceRich, view.Risk.Source)
		assert.Equal(t, datatypes.RiskHigh, view.Risk.Level)
		assert.True(t, view.Risk.HITLRequired)
	})

	t.Run("payload risk as fallback", func(t *testing.T) {
		view := Derive(samplePayload(), nil, nil)
		assert.Equal(t, SourceDegraded, view.Risk.Source)
		assert.Equal(t, datatypes.RiskMedium, view.Risk.Level)
	})

	t.Run("nil payload and panel yield empty degraded risk", func(t *testing.T) {
		view := Derive(nil, nil, nil)
		assert.Equal(t, SourceDegraded, view.Risk.Source)
		assert.Empty(t, view.Risk.Level)
	})
}

func TestNoticesDeduplicated(t *testing.T) {
	notices := []datatypes.Notice{
		{Level: "info", Message: "Source mise en cache utilisée"},
		{Level: "warn", Message: "Attention au délai"},
		{Level: "info", Message: "Source mise en cache utilisée"},
		{Level: "warn", Message: "Attention au délai"},
		{Level: "info", Message: "Troisième"},
	}
	view := Derive(nil, nil, notices)

	require.Len(t, view.Notices, 3)
	assert.Equal(t, "Source mise en cache utilisée", view.Notices[0].Message)
	assert.Equal(t, "Attention au délai", view.Notices[1].Message)
	assert.Equal(t, "Troisième", view.Notices[2].Message)
}

func TestDeriveNilEverything(t *testing.T) {
	view := Derive(nil, nil, nil)

	assert.Equal(t, SourceDegraded, view.Allowlist.Source)
	assert.True(t, view.Allowlist.Clean)
	assert.Empty(t, view.SourceHosts)
	assert.Equal(t, ComplianceUnavailable, view.Compliance.Status)
	assert.Empty(t, view.Notices)
}
