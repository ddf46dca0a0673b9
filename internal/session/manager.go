// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/basms/sessiond/internal/platform/clock"
	"github.com/basms/sessiond/internal/platform/constants"
)

// # Renewal Callbacks

// Callbacks connect the Manager to the UI bridge.
//
// Registration is late-bound and may be repeated (e.g. when the navigation
// context changes): the Manager always invokes the MOST RECENTLY registered
// set, never a closure captured when the timer was armed.
type Callbacks struct {
	// OnTokenRefreshed fires after a successful silent renewal was persisted.
	// The handler must re-read identity from the store, not cache it.
	OnTokenRefreshed func(ctx context.Context)

	// OnLogout fires exactly once per terminal session failure or explicit
	// logout. It is the single "session died" signal for the whole app.
	OnLogout func(ctx context.Context)
}

// # Token Manager

// Manager is the only component that owns time.
//
// It guarantees that at most one renewal is scheduled or in flight at any
// moment, and that every terminal failure converges into the logout funnel.
//
// # States
//
//   - Idle: no timer armed.
//   - Scheduled: a single timer armed for accessTokenExpiry − lead time.
//   - Refreshing: a renewal call in flight; non-reentrant, no timer armed.
//
// # Concurrency
//
// The browser original ran on a single event loop; in Go the timer callback
// runs on its own goroutine, so a mutex guards the single-slot timer handle
// and the callback registration. The renewal itself runs outside the lock;
// only the state transitions are serialized.
type Manager struct {
	scope  Scope
	store  *CredentialStore
	client *Client
	audit  Recorder
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	timer      clock.Timer
	callbacks  Callbacks
	refreshing bool
}

// NewManager constructs a Manager for one scope.
//
// One long-lived instance per scope, built at startup and passed explicitly,
// never ambient global state, so tests can construct isolated instances.
func NewManager(scope Scope, store *CredentialStore, client *Client, audit Recorder, clk clock.Clock, logger *slog.Logger) *Manager {
	return &Manager{
		scope:  scope,
		store:  store,
		client: client,
		audit:  audit,
		clock:  clk,
		logger: logger.With(slog.String("scope", scope.Name)),
	}
}

// SetCallbacks registers (or re-registers) the UI bridge callbacks.
func (manager *Manager) SetCallbacks(callbacks Callbacks) {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.callbacks = callbacks
}

/*
StartAutoRefresh arms the silent-renewal timer.

Description: Any previously armed timer is cancelled first; the single-slot
handle is the system's sole concurrency invariant. The delay is
accessTokenExpiry − now − 5min; a non-positive delay fires the renewal
immediately (still through the timer path, so both entry points share one
code path).

Parameters:
  - context: context.Context (used for the immediate-store read only)
*/
func (manager *Manager) StartAutoRefresh(context context.Context) {
	manager.mu.Lock()
	manager.stopTimerLocked()

	// Missing or unreadable session means a zero delay: the renewal fires at
	// once and resolves through the funnel if nothing can be renewed.
	var delay time.Duration
	if session, err := manager.store.Load(context); err == nil && session != nil {
		delay = session.AccessTokenExpiry.Sub(manager.clock.Now()) - constants.RefreshLeadTime
		if delay < 0 {
			delay = 0
		}
	}

	manager.timer = manager.clock.AfterFunc(delay, func() {
		manager.refresh(contextBackground())
	})
	manager.mu.Unlock()

	manager.logger.Debug("auto_refresh_scheduled", slog.Duration("delay", delay))
}

/*
ForceRefresh renews the session immediately, outside the timer.

Description: Used by startup bootstrap when the access token is already
expired (a scheduled timer does not survive a process restart; this call is
what re-establishes correctness afterwards). Same success/failure semantics
as the timer path, including rescheduling on success.

Parameters:
  - context: context.Context

Returns:
  - bool: Whether the renewal succeeded (callers bail out on false)
*/
func (manager *Manager) ForceRefresh(context context.Context) bool {
	return manager.refresh(context)
}

// StopAutoRefresh cancels any armed timer. Safe from any state, including
// Idle. Must be called on logout and on app teardown so timers never leak
// across navigations.
func (manager *Manager) StopAutoRefresh() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	manager.stopTimerLocked()
}

/*
Logout runs the logout funnel: stop timer, clear store, notify the bridge.

Description: This is the single path through which ALL terminal conditions
converge (expired refresh token, failed renewal, explicit user logout)
so the UI layer needs exactly one handler. The OnLogout callback fires even
when clearing storage fails: local teardown must complete regardless.

Parameters:
  - context: context.Context
  - reason: string (log/audit label, e.g. "user_logout", "refresh_failed")
*/
func (manager *Manager) Logout(context context.Context, reason string) {
	manager.StopAutoRefresh()

	identity, _ := manager.store.LoadIdentity(context)

	if err := manager.store.Clear(context); err != nil {
		manager.logger.Error("credential_clear_failed", slog.Any("error", err))
	}

	manager.recordEvent(context, EventLogout, identity, reason, "")
	manager.logger.Info("session_terminated", slog.String("reason", reason))

	if callbacks := manager.currentCallbacks(); callbacks.OnLogout != nil {
		callbacks.OnLogout(context)
	}
}

// # Renewal Path

// refresh performs one renewal cycle. It reports success and is shared by
// the timer path and ForceRefresh.
func (manager *Manager) refresh(context context.Context) bool {
	manager.mu.Lock()
	if manager.refreshing {
		// A renewal is already in flight; starting another would violate
		// the at-most-one invariant.
		manager.mu.Unlock()
		return false
	}
	manager.refreshing = true
	manager.mu.Unlock()

	defer func() {
		manager.mu.Lock()
		manager.refreshing = false
		manager.mu.Unlock()
	}()

	session, err := manager.store.Load(context)
	if err != nil {
		manager.logger.Error("credential_load_failed", slog.Any("error", err))
		manager.Logout(context, "store_unreadable")
		return false
	}

	// Unrecoverable without re-login: go straight to the funnel, no network call.
	if session == nil || manager.store.IsRefreshTokenExpired(context) {
		manager.Logout(context, "refresh_token_expired")
		return false
	}

	usedToken := session.RefreshToken

	renewed, err := manager.client.Refresh(context, usedToken)
	if err != nil {
		// Fail-fast: no in-band retry. Forcing re-authentication beats
		// silently extending a session of uncertain validity.
		manager.recordEvent(context, EventRefreshFailed, session.Identity, err.Error(), session.AccessToken)
		manager.logger.Warn("silent_renewal_failed", slog.Any("error", err))
		manager.Logout(context, "refresh_failed")
		return false
	}

	// A logout may have torn the session down while the call was in flight.
	// Persist only if the token we used is still the active one; a late
	// success must never resurrect a terminated session.
	current, err := manager.store.Load(context)
	if err != nil || current == nil || current.RefreshToken != usedToken {
		manager.logger.Info("renewal_result_discarded", slog.String("cause", "session_changed_in_flight"))
		return false
	}

	merged := mergeIdentity(renewed, current.Identity)
	if err := manager.store.Save(context, merged); err != nil {
		manager.logger.Error("credential_save_failed", slog.Any("error", err))
		manager.Logout(context, "store_unwritable")
		return false
	}

	manager.recordEvent(context, EventRefreshed, merged.Identity, "", merged.AccessToken)
	manager.logger.Debug("silent_renewal_succeeded")

	if callbacks := manager.currentCallbacks(); callbacks.OnTokenRefreshed != nil {
		callbacks.OnTokenRefreshed(context)
	}

	manager.StartAutoRefresh(context)
	return true
}

// # Internals

// stopTimerLocked clears the single timer slot. Caller holds manager.mu.
func (manager *Manager) stopTimerLocked() {
	if manager.timer != nil {
		manager.timer.Stop()
		manager.timer = nil
	}
}

// currentCallbacks snapshots the latest registered callbacks.
func (manager *Manager) currentCallbacks() Callbacks {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.callbacks
}

// recordEvent writes an audit row; failures are logged, never propagated.
func (manager *Manager) recordEvent(context context.Context, kind EventKind, identity Identity, detail string, accessToken string) {
	if manager.audit == nil {
		return
	}

	event := NewEvent(manager.scope.Name, kind, identity, detail, accessToken)
	if err := manager.audit.Record(context, event); err != nil {
		manager.logger.Warn("audit_record_failed", slog.Any("error", err))
	}
}

// mergeIdentity overlays renewed token material onto the identity already in
// the store: a refresh response may omit fullName/roleId, and those cached
// attributes must survive the renewal.
func mergeIdentity(renewed *Session, existing Identity) *Session {
	merged := *renewed

	if merged.Identity.UserID == "" {
		merged.Identity.UserID = existing.UserID
	}
	if merged.Identity.Email == "" {
		merged.Identity.Email = existing.Email
	}
	if merged.Identity.FullName == "" {
		merged.Identity.FullName = existing.FullName
	}
	if merged.Identity.RoleID == "" {
		merged.Identity.RoleID = existing.RoleID
	}

	return &merged
}

// contextBackground is split out so the timer callback reads clearly.
func contextBackground() context.Context {
	return context.Background()
}
