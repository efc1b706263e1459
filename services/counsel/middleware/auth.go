// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the counsel service.
//
// Auth flow: the auth middleware extracts the bearer token, validates
// it through the configured extensions.AuthProvider, and stores the
// resulting AuthInfo in the Gin context. Privileged routes add an
// authorization check through extensions.AuthzProvider; a denial maps
// to 403, distinguishable from authentication failure (401) and
// internal errors (5xx).
//
// With the default Nop providers every request authenticates as
// local-user with admin rights, so a single-user deployment needs no
// identity infrastructure.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PraetorAI/PraetorLocal/pkg/extensions"
)

// authInfoKey is the Gin context key for the authenticated caller.
const authInfoKey = "praetor_auth_info"

// SetAuthInfo stores the authenticated caller in the Gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the authenticated caller, or nil when the auth
// middleware has not run.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// Auth authenticates requests with the given provider. Invalid tokens
// abort with 401.
func Auth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// RequireAction authorizes a privileged action with the given
// provider. Denials abort with 403; the route's :id parameter, when
// present, becomes the resource ID of the check.
func RequireAction(provider extensions.AuthzProvider, action, resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := provider.Authorize(c.Request.Context(), extensions.AuthzRequest{
			User:         GetAuthInfo(c),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
		})
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
			return
		}
		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". The
// scheme is matched case-insensitively per RFC 7235; a missing or
// malformed header yields the empty token.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
