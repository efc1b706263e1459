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

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/export"
	"github.com/PraetorAI/PraetorLocal/services/counsel/session"
)

// CreateExport renders the latest run as a signed research memo.
// Signing is best-effort: a failure is reported in the document's
// Signed flag, never as an HTTP error.
func CreateExport(exporter *export.Exporter, latest *session.Latest, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, _ := latest.Get()
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no research run to export"})
			return
		}

		doc, err := exporter.Export(c.Request.Context(), run)
		if err != nil {
			log.Error("export failed", "run_id", run.RunID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}
