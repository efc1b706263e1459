// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/agent"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/outbox"
	"github.com/PraetorAI/PraetorLocal/services/counsel/submit"
)

// ListOutbox returns the pending requests in enqueue order.
// Confidential entries are listed like any other; only their delivery
// is held back from automatic flushes.
func ListOutbox(store *outbox.Store, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := store.Items(c.Request.Context())
		if err != nil {
			log.Error("failed to list outbox", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list outbox"})
			return
		}
		if items == nil {
			items = []*datatypes.ResearchRequest{}
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

// RemoveOutboxEntry deletes a pending request. Removal is idempotent,
// so an unknown ID still returns success.
func RemoveOutboxEntry(store *outbox.Store, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := store.Remove(c.Request.Context(), id); err != nil {
			log.Error("failed to remove outbox entry", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove outbox entry"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed", "id": id})
	}
}

// RetryOutboxEntry attempts immediate delivery of one pending request,
// confidential or not. The delivery error is surfaced so the user
// sees why a manual retry failed.
func RetryOutboxEntry(orch *submit.Orchestrator, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := orch.Retry(c.Request.Context(), id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"status": "delivered", "id": id})
		case errors.Is(err, outbox.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "outbox entry not found"})
		case errors.Is(err, agent.ErrAgentUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "agent service unavailable"})
		default:
			log.Warn("outbox retry failed", "id", id, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
	}
}
