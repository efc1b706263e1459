// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization
// fails. Enterprise implementations should wrap this error with
// additional context so callers can still match it with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo describes an authenticated caller.
//
// OrgID and UserID are the identifiers forwarded to the agent-execution
// service and recorded in audit events; both are required for
// authorization checks on privileged actions.
type AuthInfo struct {
	// UserID identifies the authenticated user.
	UserID string

	// OrgID identifies the tenant organization the user acts within.
	OrgID string

	// Email is the user's email address, if known.
	Email string

	// Roles are the roles granted to the user ("admin", "researcher",
	// "reviewer"). Role semantics are implementation-defined.
	Roles []string
}

// AuthProvider validates a bearer token and resolves the caller's
// identity.
//
// Implementations must be safe for concurrent use.
//
// # Open Source Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges, so a single-user local deployment works without any
// identity infrastructure.
//
// # Enterprise Implementation
//
// Enterprise builds validate tokens against identity providers (Okta,
// Auth0, Azure AD) and return real identity information, wrapping
// ErrUnauthorized on failure.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	// Returns ErrUnauthorized (possibly wrapped) for invalid tokens.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check for a privileged
// action, following the (subject, action, resource) pattern.
type AuthzRequest struct {
	// User is the authenticated caller, from AuthProvider.Validate.
	User *AuthInfo

	// Action is the operation being attempted. Known actions:
	// "research.submit", "outbox.retry", "outbox.remove",
	// "export.create".
	Action string

	// ResourceType is the category of resource ("research", "outbox",
	// "export").
	ResourceType string

	// ResourceID is the specific resource instance, or empty for a
	// type-level check.
	ResourceID string
}

// AuthzProvider checks whether a caller may perform an action.
//
// Implementations must be safe for concurrent use. Denials return
// ErrUnauthorized (possibly wrapped); callers surface these as
// access-denied responses distinguishable from generic failures.
type AuthzProvider interface {
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default provider for open source builds. It
// accepts any token (including empty) and returns a local admin user.
//
// Thread-safe: no mutable state.
type NopAuthProvider struct{}

// Validate always returns a valid local user with admin privileges.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		OrgID:  "local-org",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider is the default authorization provider for open
// source builds. It allows every action.
//
// Thread-safe: no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
