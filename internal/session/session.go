// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

/*
Package session implements the token lifecycle layer of the BASMS admin platform.

Every authenticated view of the backoffice depends on this package: it persists
credentials, silently renews access tokens before they expire, and guarantees
that every terminal failure converges into a single logout funnel.

# Architecture

The package is one generic implementation instantiated once per application
surface (the main backoffice and the e-contract signing app), parameterized by
a [Scope]:

  - CredentialStore: durable, prefix-scoped persistence of the [Session].
  - Client: the only component speaking to the backend auth endpoints.
  - Manager: the only component that owns time; schedules silent renewal.
  - SessionContext: bridges Manager/Client to the UI surface and owns
    navigation side effects.

# Invariants

A Session is either fully present or fully absent; partial persisted state
loads as absent. At most one renewal timer is armed per Manager. All failure
paths (expired refresh token, failed renewal, explicit logout) run through one
logout funnel so the UI has exactly one "session died" handler.
*/
package session

import (
	"time"
)

// # Domain Entities

// Identity holds the denormalized user attributes cached alongside tokens so a
// page reload does not require a network round-trip.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	RoleID   string `json:"role_id"`
}

// Session is the authoritative unit of authentication state for one
// application surface.
type Session struct {
	// AccessToken is the short-lived bearer credential for API calls.
	AccessToken string `json:"access_token"`

	// RefreshToken is the longer-lived credential used solely to mint new
	// access tokens.
	RefreshToken string `json:"-"` // Never serialized towards the UI.

	// AccessTokenExpiry is the absolute instant after which the access token
	// must not be used.
	AccessTokenExpiry time.Time `json:"access_token_expiry"`

	// RefreshTokenExpiry is the absolute instant after which the session is
	// unrecoverable without re-login.
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`

	// Identity caches user attributes for reload without a network call.
	Identity Identity `json:"identity"`
}

// # Session Scopes

// Scope parameterizes one application surface: storage-key prefix, backend
// endpoints, and post-login route targets.
//
// Two independent scopes never collide in storage because every persisted key
// carries the scope's prefix.
type Scope struct {
	// Name identifies the scope in logs and audit rows ("" = main backoffice).
	Name string

	// KeyPrefix namespaces all credential-store keys for this scope.
	KeyPrefix string

	// BaseURL is the BASMS backend consumed by this surface.
	BaseURL string

	// LoginRoute is where the UI lands after the logout funnel fires.
	LoginRoute string

	// PasswordUpdateRoute is where first-login accounts are sent instead of
	// completing login.
	PasswordUpdateRoute string

	// DashboardRoutes maps a role ID to its post-login dashboard route.
	DashboardRoutes map[string]string

	// DefaultRoute is the fallback when a role has no dedicated dashboard.
	DefaultRoute string

	// PublicRoutes are never stashed as a post-login redirect target.
	PublicRoutes []string
}

// # Role Identifiers

// Role IDs as assigned by the BASMS backend.
const (
	RoleAdmin    = "1"
	RoleDirector = "2"
	RoleManager  = "3"
)

// MainScope returns the [Scope] for the main backoffice surface.
func MainScope(baseURL string) Scope {
	return Scope{
		Name:                "",
		KeyPrefix:           "",
		BaseURL:             baseURL,
		LoginRoute:          "/login",
		PasswordUpdateRoute: "/update-password",
		DashboardRoutes: map[string]string{
			RoleAdmin:    "/admin/dashboard",
			RoleDirector: "/director/dashboard",
			RoleManager:  "/manager/dashboard",
		},
		DefaultRoute: "/dashboard",
		PublicRoutes: []string{"/login", "/forgot-password", "/update-password"},
	}
}

// EContractScope returns the [Scope] for the e-contract signing surface.
func EContractScope(baseURL string) Scope {
	return Scope{
		Name:                "eContract",
		KeyPrefix:           "eContract",
		BaseURL:             baseURL,
		LoginRoute:          "/econtract/login",
		PasswordUpdateRoute: "/econtract/update-password",
		DashboardRoutes: map[string]string{
			RoleAdmin:    "/econtract/dashboard",
			RoleDirector: "/econtract/dashboard",
			RoleManager:  "/econtract/dashboard",
		},
		DefaultRoute: "/econtract/dashboard",
		PublicRoutes: []string{"/econtract/login", "/econtract/forgot-password", "/econtract/update-password"},
	}
}

// DashboardRouteFor resolves the post-login route for a role ID.
func (s Scope) DashboardRouteFor(roleID string) string {
	if route, ok := s.DashboardRoutes[roleID]; ok {
		return route
	}
	return s.DefaultRoute
}

// IsPublicRoute reports whether path must never be stashed for post-login redirect.
func (s Scope) IsPublicRoute(path string) bool {
	for _, route := range s.PublicRoutes {
		if path == route {
			return true
		}
	}
	return false
}

// # Storage Key Layout

// Key suffixes composing the persisted session layout. Full keys are
// "{prefix}{suffix}", e.g. "eContractAccessToken".
const (
	keyAccessToken        = "AccessToken"
	keyRefreshToken       = "RefreshToken"
	keyAccessTokenExpiry  = "AccessTokenExpiry"
	keyRefreshTokenExpiry = "RefreshTokenExpiry"
	keyUserID             = "UserId"
	keyEmail              = "Email"
	keyFullName           = "FullName"
	keyRoleID             = "RoleId"
)

// keyRedirectAfterLogin holds the path to restore after successful login.
// Transient: lives in the non-durable store, never persisted across restarts.
const keyRedirectAfterLogin = "redirectAfterLogin"

// # Field Identifiers

// Global field names for validation in the session domain.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)
