// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenAuthProvider struct {
	token string
}

func (p *tokenAuthProvider) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	if token != p.token {
		return nil, extensions.ErrUnauthorized
	}
	return &extensions.AuthInfo{UserID: "avocat-1", OrgID: "cabinet-1"}, nil
}

type denyAuthzProvider struct {
	last extensions.AuthzRequest
}

func (p *denyAuthzProvider) Authorize(_ context.Context, req extensions.AuthzRequest) error {
	p.last = req
	return extensions.ErrUnauthorized
}

func newRouter(mw ...gin.HandlerFunc) (*gin.Engine, *int) {
	r := gin.New()
	hits := 0
	r.Use(mw...)
	r.POST("/v1/outbox/:id/retry", func(c *gin.Context) {
		hits++
		c.Status(http.StatusOK)
	})
	return r, &hits
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	r, hits := newRouter(Auth(&tokenAuthProvider{token: "secret"}))

	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/abc/retry", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *hits)
}

func TestAuthRejectsBadToken(t *testing.T) {
	r, hits := newRouter(Auth(&tokenAuthProvider{token: "secret"}))

	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/abc/retry", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
	assert.Equal(t, 0, *hits)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r, hits := newRouter(Auth(&tokenAuthProvider{token: "secret"}))

	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/abc/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, *hits)
}

func TestAuthNopProviderAllowsAnonymous(t *testing.T) {
	r := gin.New()
	r.Use(Auth(&extensions.NopAuthProvider{}))
	var info *extensions.AuthInfo
	r.GET("/v1/research/latest", func(c *gin.Context) {
		info = GetAuthInfo(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/research/latest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, info)
	assert.Equal(t, "local-user", info.UserID)
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"BEARER abc":  "abc",
		"Basic abc":   "",
		"Bearer":      "",
		"":            "",
		"Bearer  xy ": "xy",
	}
	for header, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, extractBearerToken(c), "header %q", header)
	}
}

func TestRequireActionDeniesWithForbidden(t *testing.T) {
	authz := &denyAuthzProvider{}
	r, hits := newRouter(
		Auth(&extensions.NopAuthProvider{}),
		RequireAction(authz, "outbox.retry", "outbox"),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/req-42/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, *hits)
	assert.Equal(t, "outbox.retry", authz.last.Action)
	assert.Equal(t, "outbox", authz.last.ResourceType)
	assert.Equal(t, "req-42", authz.last.ResourceID)
	require.NotNil(t, authz.last.User)
	assert.Equal(t, "local-user", authz.last.User.UserID)
}

func TestRequireActionNopProviderAllows(t *testing.T) {
	r, hits := newRouter(
		Auth(&extensions.NopAuthProvider{}),
		RequireAction(&extensions.NopAuthzProvider{}, "outbox.retry", "outbox"),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/outbox/req-42/retry", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *hits)
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()
	r, hits := newRouter(rl.Middleware())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/v1/outbox/abc/retry", nil)
		req.RemoteAddr = "10.0.0.7:5120"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, *hits)
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	r, hits := newRouter(rl.Middleware())

	for _, addr := range []string{"10.0.0.1:100", "10.0.0.2:100", "10.0.0.3:100"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/outbox/abc/retry", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "addr %s", addr)
	}
	assert.Equal(t, 3, *hits)
}
