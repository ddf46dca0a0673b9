// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/basms/sessiond/internal/platform/apperr"
	"github.com/basms/sessiond/internal/platform/constants"
)

// # Navigation

// Navigator abstracts the surface the session layer steers after lifecycle
// transitions. In the gateway it is backed by redirect hints on API
// responses; tests substitute a recording fake.
type Navigator interface {
	// CurrentPath returns the path the user is on right now.
	CurrentPath() string

	// NavigateTo steers the user to path.
	NavigateTo(path string)
}

// NopNavigator ignores all navigation. Used where no surface is attached.
type NopNavigator struct{}

func (NopNavigator) CurrentPath() string { return "" }
func (NopNavigator) NavigateTo(string)  {}

// # Session State

// State is the snapshot delivered to the [SessionContext] subscriber.
type State struct {
	Authenticated bool
	Identity      Identity
}

// LoginResult reports where a successful login landed.
type LoginResult struct {
	Identity   Identity
	RedirectTo string
}

// # Session Context

// SessionContext is the bridge between the session machinery and whatever
// consumes it: it owns login orchestration, the post-login redirect, the
// role denylist, and the single change subscriber.
//
// # Lifecycle wiring
//
// The context registers itself as the Manager's callback target, so silent
// renewals and the logout funnel surface here as state-change notifications
// and (for forced logouts) a redirect stash plus navigation to the login
// route.
type SessionContext struct {
	scope       Scope
	store       *CredentialStore
	client      *Client
	manager     *Manager
	transient   KeyValue
	audit       Recorder
	logger      *slog.Logger
	deniedRoles []string

	mu             sync.Mutex
	navigator      Navigator
	subscriber     func(State)
	failedLogins   map[string]int
	explicitLogout bool
}

// NewSessionContext wires a context for one scope and registers it with the
// Manager. transient holds state that must NOT survive a restart (the
// redirect stash); pass a [MemoryKeyValue].
func NewSessionContext(
	scope Scope,
	store *CredentialStore,
	client *Client,
	manager *Manager,
	transient KeyValue,
	audit Recorder,
	deniedRoles []string,
	logger *slog.Logger,
) *SessionContext {
	sessionContext := &SessionContext{
		scope:        scope,
		store:        store,
		client:       client,
		manager:      manager,
		transient:    transient,
		audit:        audit,
		logger:       logger.With(slog.String("scope", scope.Name)),
		deniedRoles:  deniedRoles,
		navigator:    NopNavigator{},
		failedLogins: map[string]int{},
	}

	manager.SetCallbacks(Callbacks{
		OnTokenRefreshed: sessionContext.handleRefreshed,
		OnLogout:         sessionContext.handleLogout,
	})

	return sessionContext
}

// SetNavigator attaches (or replaces) the navigation surface. Latest wins.
func (sessionContext *SessionContext) SetNavigator(navigator Navigator) {
	sessionContext.mu.Lock()
	defer sessionContext.mu.Unlock()

	if navigator == nil {
		navigator = NopNavigator{}
	}
	sessionContext.navigator = navigator
}

// OnChange registers the single state-change subscriber. A repeated call
// replaces the previous subscriber; nil unregisters.
func (sessionContext *SessionContext) OnChange(subscriber func(State)) {
	sessionContext.mu.Lock()
	defer sessionContext.mu.Unlock()
	sessionContext.subscriber = subscriber
}

/*
Initialize bootstraps the session state after a restart.

Description: A scheduled renewal timer does not survive a restart, so the
store is re-read and the timer re-armed. When the access token has already
lapsed but the refresh token is live, an immediate forced renewal
re-establishes a valid session before anything else runs; if even that fails
the Manager funnels into logout on its own. An unauthenticated store is
cleared outright so torn partial state cannot linger in the backend.

Parameters:
  - context: context.Context
*/
func (sessionContext *SessionContext) Initialize(context context.Context) {
	if !sessionContext.store.IsAuthenticated(context) {
		// Partial persisted state loads as absent but its keys would linger
		// in the durable backend; Clear is idempotent, so the empty-store
		// case costs nothing.
		if err := sessionContext.store.Clear(context); err != nil {
			sessionContext.logger.Warn("bootstrap_clear_failed", slog.Any("error", err))
		}
		sessionContext.logger.Debug("bootstrap_unauthenticated")
		sessionContext.notify(context)
		return
	}

	if sessionContext.store.IsAccessTokenExpired(context) {
		if !sessionContext.manager.ForceRefresh(context) {
			// The Manager already ran the logout funnel.
			return
		}
	} else {
		sessionContext.manager.StartAutoRefresh(context)
	}

	sessionContext.logger.Info("bootstrap_session_restored")
	sessionContext.notify(context)
}

/*
Login runs the full login orchestration for this scope.

Description: The flow is ordered deliberately:

 1. First-login pre-flight: accounts that must still set a password are
    steered to the password-update route BEFORE any credential check, so no
    session state exists for them.
 2. Credential check against the backend.
 3. Role denylist: a denied role is rejected AFTER a successful credential
    check, and nothing is persisted.
 4. Persist, reset the failure counter, start silent renewal, and steer to
    the stashed redirect or the role's dashboard.

Five consecutive failures for the same email switch the error to a
password-reset suggestion instead of the generic message.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *LoginResult: Identity and redirect target on success
  - error: Session failure taxonomy
*/
func (sessionContext *SessionContext) Login(context context.Context, email, password string) (*LoginResult, error) {
	status, err := sessionContext.client.CheckFirstLogin(context, email)
	if err != nil {
		// The probe is advisory; a broken probe must not block login.
		sessionContext.logger.Warn("first_login_probe_failed", slog.Any("error", err))
	}

	if status != nil && status.IsFirstLogin {
		sessionContext.navigate(sessionContext.scope.PasswordUpdateRoute)
		return nil, errFirstLogin()
	}

	session, err := sessionContext.client.Login(context, email, password)
	if err != nil {
		return nil, sessionContext.handleLoginFailure(context, email, err)
	}

	if sessionContext.isRoleDenied(session.Identity.RoleID) {
		sessionContext.recordEvent(context, EventLoginFailed, session.Identity, "role_denied", "")
		sessionContext.logger.Warn("login_role_denied", slog.String("role_id", session.Identity.RoleID))
		return nil, errRoleDenied()
	}

	if err := sessionContext.store.Save(context, session); err != nil {
		sessionContext.logger.Error("credential_save_failed", slog.Any("error", err))
		return nil, errSessionPersist(err)
	}

	sessionContext.resetFailures(email)
	sessionContext.recordEvent(context, EventLogin, session.Identity, "", session.AccessToken)
	sessionContext.manager.StartAutoRefresh(context)

	redirectTo := sessionContext.popRedirect(context)
	if redirectTo == "" {
		redirectTo = sessionContext.scope.DashboardRouteFor(session.Identity.RoleID)
	}

	sessionContext.navigate(redirectTo)
	sessionContext.notify(context)

	sessionContext.logger.Info("login_succeeded",
		slog.String("user_id", session.Identity.UserID),
		slog.String("redirect_to", redirectTo),
	)

	return &LoginResult{Identity: session.Identity, RedirectTo: redirectTo}, nil
}

/*
Logout terminates the session on user request.

Description: The backend is notified best-effort with the current access
token, then the Manager's funnel does the local teardown. Always succeeds
from the caller's perspective.

Parameters:
  - context: context.Context
*/
func (sessionContext *SessionContext) Logout(context context.Context) {
	if session, err := sessionContext.store.Load(context); err == nil && session != nil {
		sessionContext.client.Logout(context, session.AccessToken)
	}

	// A chosen logout must not stash the current path: the user is leaving,
	// not being interrupted.
	sessionContext.mu.Lock()
	sessionContext.explicitLogout = true
	sessionContext.mu.Unlock()

	sessionContext.manager.Logout(context, "user_logout")
}

// CurrentState snapshots the session state for this scope.
func (sessionContext *SessionContext) CurrentState(context context.Context) State {
	if !sessionContext.store.IsAuthenticated(context) {
		return State{}
	}

	identity, err := sessionContext.store.LoadIdentity(context)
	if err != nil {
		return State{}
	}

	return State{Authenticated: true, Identity: identity}
}

// # Lifecycle Callbacks

// handleRefreshed relays a successful silent renewal to the subscriber.
func (sessionContext *SessionContext) handleRefreshed(context context.Context) {
	sessionContext.notify(context)
}

// handleLogout finishes a logout funnel run: stash the interrupted path so
// the next login can resume it, steer to the login route, notify. Only a
// forced logout stashes; an explicit one does not.
func (sessionContext *SessionContext) handleLogout(context context.Context) {
	sessionContext.mu.Lock()
	wasExplicit := sessionContext.explicitLogout
	sessionContext.explicitLogout = false
	sessionContext.mu.Unlock()

	currentPath := sessionContext.currentNavigator().CurrentPath()
	if !wasExplicit && currentPath != "" && !sessionContext.scope.IsPublicRoute(currentPath) {
		if err := sessionContext.transient.Set(context, keyRedirectAfterLogin, currentPath); err != nil {
			sessionContext.logger.Warn("redirect_stash_failed", slog.Any("error", err))
		}
	}

	sessionContext.navigate(sessionContext.scope.LoginRoute)
	sessionContext.notify(context)
}

// # Internals

// handleLoginFailure bumps the per-email failure counter and swaps in the
// password-reset suggestion once the threshold is reached. Only credential
// failures count; account-state and upstream errors pass through unchanged.
func (sessionContext *SessionContext) handleLoginFailure(context context.Context, email string, loginErr error) error {
	sessionContext.recordEvent(context, EventLoginFailed, Identity{Email: email}, apperr.CodeOf(loginErr), "")

	if apperr.CodeOf(loginErr) != CodeInvalidCredentials {
		return loginErr
	}

	sessionContext.mu.Lock()
	sessionContext.failedLogins[email]++
	failures := sessionContext.failedLogins[email]
	if failures >= constants.MaxFailedLogins {
		// The suggestion starts a fresh window; without this every later
		// attempt would keep suggesting a reset.
		delete(sessionContext.failedLogins, email)
	}
	sessionContext.mu.Unlock()

	sessionContext.logger.Warn("login_failed",
		slog.String("email", email),
		slog.Int("consecutive_failures", failures),
	)

	if failures >= constants.MaxFailedLogins {
		return errPasswordResetSuggested()
	}

	return loginErr
}

// isRoleDenied checks the configured denylist.
func (sessionContext *SessionContext) isRoleDenied(roleID string) bool {
	for _, denied := range sessionContext.deniedRoles {
		if denied == roleID {
			return true
		}
	}
	return false
}

// resetFailures clears the failure counter for email.
func (sessionContext *SessionContext) resetFailures(email string) {
	sessionContext.mu.Lock()
	defer sessionContext.mu.Unlock()
	delete(sessionContext.failedLogins, email)
}

// popRedirect consumes the stashed post-login redirect, if any.
func (sessionContext *SessionContext) popRedirect(context context.Context) string {
	path, ok, err := sessionContext.transient.Get(context, keyRedirectAfterLogin)
	if err != nil || !ok {
		return ""
	}

	if err := sessionContext.transient.Delete(context, keyRedirectAfterLogin); err != nil {
		sessionContext.logger.Warn("redirect_stash_clear_failed", slog.Any("error", err))
	}

	return path
}

// navigate steers the attached navigator.
func (sessionContext *SessionContext) navigate(path string) {
	if path == "" {
		return
	}
	sessionContext.currentNavigator().NavigateTo(path)
}

// currentNavigator snapshots the attached navigator.
func (sessionContext *SessionContext) currentNavigator() Navigator {
	sessionContext.mu.Lock()
	defer sessionContext.mu.Unlock()
	return sessionContext.navigator
}

// notify delivers the current state to the subscriber, if any.
func (sessionContext *SessionContext) notify(context context.Context) {
	sessionContext.mu.Lock()
	subscriber := sessionContext.subscriber
	sessionContext.mu.Unlock()

	if subscriber != nil {
		subscriber(sessionContext.CurrentState(context))
	}
}

// recordEvent writes an audit row; failures are logged, never propagated.
func (sessionContext *SessionContext) recordEvent(context context.Context, kind EventKind, identity Identity, detail string, accessToken string) {
	if sessionContext.audit == nil {
		return
	}

	event := NewEvent(sessionContext.scope.Name, kind, identity, detail, accessToken)
	if err := sessionContext.audit.Record(context, event); err != nil {
		sessionContext.logger.Warn("audit_record_failed", slog.Any("error", err))
	}
}
