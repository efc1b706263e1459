// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() ResearchRequest {
	return ResearchRequest{
		Question:  "Quelle est la prescription applicable ?",
		Context:   "Contrat commercial, droit français",
		AgentCode: "fr-civil",
	}
}

func TestResearchRequestValidation(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		req := validRequest()
		assert.NoError(t, req.Validate())
	})

	t.Run("empty question rejected", func(t *testing.T) {
		req := validRequest()
		req.Question = ""
		assert.Error(t, req.Validate())
	})

	t.Run("whitespace-only question rejected", func(t *testing.T) {
		req := validRequest()
		req.Question = "   \t\n  "
		assert.Error(t, req.Validate())
	})

	t.Run("oversized question rejected", func(t *testing.T) {
		req := validRequest()
		req.Question = strings.Repeat("a", MaxQuestionBytes+1)
		assert.Error(t, req.Validate())
	})

	t.Run("question at limit passes", func(t *testing.T) {
		req := validRequest()
		req.Question = strings.Repeat("a", MaxQuestionBytes)
		assert.NoError(t, req.Validate())
	})

	t.Run("missing agent code rejected", func(t *testing.T) {
		req := validRequest()
		req.AgentCode = ""
		assert.Error(t, req.Validate())
	})

	t.Run("oversized context rejected", func(t *testing.T) {
		req := validRequest()
		req.Context = strings.Repeat("b", MaxContextBytes+1)
		assert.Error(t, req.Validate())
	})
}

func TestDecodeRunResponse(t *testing.T) {
	t.Run("well-formed response decodes", func(t *testing.T) {
		raw := []byte(`{
			"run_id": "run-1",
			"agent": {"code": "fr-civil", "label": "Droit civil"},
			"data": {
				"jurisdiction": {"country": "FR", "eu": true},
				"issue": "Prescription",
				"rules": [{"citation": "Art. 2224 C. civ.", "binding": true}],
				"application": "...",
				"conclusion": "...",
				"citations": [{"title": "Cass. civ. 1re", "url": "https://legifrance.gouv.fr/x"}],
				"risk": {"level": "HIGH", "hitl_required": true}
			}
		}`)
		run, err := DecodeRunResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, "run-1", run.RunID)
		require.NotNil(t, run.Data)
		assert.Equal(t, RiskHigh, run.Data.Risk.Level)
		assert.True(t, run.Data.Risk.HITLRequired)
	})

	t.Run("unknown fields quarantined", func(t *testing.T) {
		raw := []byte(`{"run_id": "run-1", "agent": {"code": "x"}, "surprise": 1}`)
		_, err := DecodeRunResponse(raw)
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "decode", qe.Reason)
	})

	t.Run("missing run id quarantined", func(t *testing.T) {
		raw := []byte(`{"agent": {"code": "x"}}`)
		_, err := DecodeRunResponse(raw)
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "validate", qe.Reason)
	})

	t.Run("invalid risk level quarantined", func(t *testing.T) {
		raw := []byte(`{
			"run_id": "run-1",
			"agent": {"code": "x"},
			"data": {
				"jurisdiction": {"country": "FR"},
				"issue": "", "rules": [], "application": "", "conclusion": "",
				"citations": [], "risk": {"level": "SEVERE", "hitl_required": false}
			}
		}`)
		_, err := DecodeRunResponse(raw)
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "validate", qe.Reason)
		assert.Contains(t, qe.Error(), "SEVERE")
	})

	t.Run("empty risk level with payload quarantined", func(t *testing.T) {
		raw := []byte(`{
			"run_id": "run-1",
			"agent": {"code": "x"},
			"data": {
				"jurisdiction": {"country": "FR"},
				"issue": "Prescription", "rules": [], "application": "...", "conclusion": "...",
				"citations": [], "risk": {"level": "", "hitl_required": false}
			}
		}`)
		_, err := DecodeRunResponse(raw)
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "validate", qe.Reason)
	})

	t.Run("not json quarantined", func(t *testing.T) {
		_, err := DecodeRunResponse([]byte("<html>bad gateway</html>"))
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
	})

	t.Run("trailing data quarantined", func(t *testing.T) {
		raw := []byte(`{"run_id": "run-1", "agent": {"code": "x"}} {"second": true}`)
		_, err := DecodeRunResponse(raw)
		var qe *QuarantineError
		require.ErrorAs(t, err, &qe)
	})

	t.Run("absent data and trust panel are accepted", func(t *testing.T) {
		raw := []byte(`{"run_id": "run-2", "agent": {"code": "x"}}`)
		run, err := DecodeRunResponse(raw)
		require.NoError(t, err)
		assert.Nil(t, run.Data)
		assert.Nil(t, run.TrustPanel)
	})
}
