// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the counsel HTTP endpoints to their handlers
// and middleware.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/connectivity"
	"github.com/PraetorAI/PraetorLocal/services/counsel/events"
	"github.com/PraetorAI/PraetorLocal/services/counsel/export"
	"github.com/PraetorAI/PraetorLocal/services/counsel/handlers"
	"github.com/PraetorAI/PraetorLocal/services/counsel/middleware"
	"github.com/PraetorAI/PraetorLocal/services/counsel/outbox"
	"github.com/PraetorAI/PraetorLocal/services/counsel/session"
	"github.com/PraetorAI/PraetorLocal/services/counsel/submit"
	"github.com/PraetorAI/PraetorLocal/services/counsel/telemetry"
)

// Deps are the collaborators the route tree needs. Auth and Authz
// default to the Nop providers when nil, matching the single-user
// local deployment.
type Deps struct {
	Orchestrator *submit.Orchestrator
	Outbox       *outbox.Store
	Latest       *session.Latest
	Exporter     *export.Exporter
	Bus          *events.Bus
	Monitor      *connectivity.Monitor
	Auth         extensions.AuthProvider
	Authz        extensions.AuthzProvider
	RateLimiter  *middleware.RateLimiter
	Logger       *logging.Logger
}

// Setup registers every endpoint of the counsel service on the given
// engine.
func Setup(router *gin.Engine, deps Deps) {
	log := deps.Logger
	if log == nil {
		log = logging.Default()
	}
	auth := deps.Auth
	if auth == nil {
		auth = &extensions.NopAuthProvider{}
	}
	authz := deps.Authz
	if authz == nil {
		authz = &extensions.NopAuthzProvider{}
	}

	router.Use(otelgin.Middleware("counsel-service"))

	router.GET("/health", handlers.HealthCheck(deps.Monitor, deps.Outbox))
	router.GET("/metrics", func(c *gin.Context) {
		h := telemetry.MetricsHandler()
		if h == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "metrics exporter disabled"})
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	})

	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(auth))
	if deps.RateLimiter != nil {
		v1.Use(deps.RateLimiter.Middleware())
	}
	{
		v1.POST("/research",
			middleware.RequireAction(authz, "research.submit", "research"),
			handlers.SubmitResearch(deps.Orchestrator, log))
		v1.GET("/research/latest", handlers.GetLatestRun(deps.Latest, deps.Monitor))

		v1.GET("/outbox", handlers.ListOutbox(deps.Outbox, log))
		v1.DELETE("/outbox/:id",
			middleware.RequireAction(authz, "outbox.remove", "outbox"),
			handlers.RemoveOutboxEntry(deps.Outbox, log))
		v1.POST("/outbox/:id/retry",
			middleware.RequireAction(authz, "outbox.retry", "outbox"),
			handlers.RetryOutboxEntry(deps.Orchestrator, log))

		v1.POST("/export",
			middleware.RequireAction(authz, "export.create", "export"),
			handlers.CreateExport(deps.Exporter, deps.Latest, log))

		v1.GET("/stream", handlers.StreamEvents(deps.Bus, deps.Monitor, log))
	}
}
