// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/outbox"
)

// HealthCheck reports service liveness plus the connectivity state
// and outbox depth. The service is healthy even when the agent is
// unreachable; offline operation is a supported mode, not a failure.
func HealthCheck(monitor *connectivity.Monitor, store *outbox.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending, err := store.Len(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "outbox unavailable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"agent_online":   monitor.Online(),
			"outbox_pending": pending,
		})
	}
}
