// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP endpoints of the counsel
// service.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/middleware"
	"github.com/PraetorAI/PraetorLocal/services/counsel/session"
	"github.com/PraetorAI/PraetorLocal/services/counsel/submit"
	"github.com/PraetorAI/PraetorLocal/services/counsel/trustview"
)

// SubmitResearch accepts a research question and hands it to the
// submission orchestrator. Validation failures yield 400; a queued
// outcome is still 202 because the request is durably stored and will
// be delivered on reconnect.
func SubmitResearch(orch *submit.Orchestrator, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if info := middleware.GetAuthInfo(c); info != nil {
			req.UserID = info.UserID
			req.OrgID = info.OrgID
		}

		result, err := orch.Submit(c.Request.Context(), &req)
		if err != nil {
			var verr *submit.ValidationError
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			log.Error("research submission failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
			return
		}

		status := http.StatusOK
		if result.State == datatypes.SubmissionQueued {
			status = http.StatusAccepted
		}
		c.JSON(status, result)
	}
}

// latestResponse carries the latest run together with its derived
// trust panel so the UI never recomputes compliance client-side.
type latestResponse struct {
	Run       *datatypes.AgentRunResponse `json:"run"`
	TrustView trustview.TrustView         `json:"trust_view"`
	UpdatedAt string                      `json:"updated_at"`

	// StaleCitations lists titles of cited authorities older than
	// the staleness threshold. Citations without a parseable date are
	// never flagged.
	StaleCitations []string `json:"stale_citations,omitempty"`
}

// GetLatestRun returns the most recent agent run, or 404 when nothing
// has completed yet.
func GetLatestRun(latest *session.Latest, monitor *connectivity.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, updatedAt := latest.Get()
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no research run available"})
			return
		}
		c.JSON(http.StatusOK, latestResponse{
			Run:            run,
			TrustView:      trustview.DeriveRun(run),
			UpdatedAt:      updatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			StaleCitations: staleCitations(run, !monitor.Online()),
		})
	}
}

func staleCitations(run *datatypes.AgentRunResponse, offline bool) []string {
	if run.Data == nil {
		return nil
	}
	var titles []string
	for _, citation := range run.Data.Citations {
		if trustview.IsStale(citation.Date, trustview.StaleOptions{Offline: offline}) {
			titles = append(titles, citation.Title)
		}
	}
	return titles
}
