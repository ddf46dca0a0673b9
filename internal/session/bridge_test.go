// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basms/sessiond/internal/platform/apperr"
	"github.com/basms/sessiond/internal/session"
)

// fakeBackend is a configurable stand-in for the BASMS auth API.
type fakeBackend struct {
	server *httptest.Server
	clk    *fakeClock

	firstLogin  bool
	loginStatus int    // 0 means success
	loginCode   string // backend error code on failure
	roleID      string

	loginCalls  atomic.Int64
	logoutCalls atomic.Int64
}

func newFakeBackend(t *testing.T, clk *fakeClock) *fakeBackend {
	t.Helper()

	backend := &fakeBackend{clk: clk, roleID: session.RoleAdmin}

	mux := http.NewServeMux()
	mux.HandleFunc("/users/check-first-login", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]any{"isFirstLogin": backend.firstLogin})
	})
	mux.HandleFunc("/auth/login", func(writer http.ResponseWriter, request *http.Request) {
		backend.loginCalls.Add(1)
		writer.Header().Set("Content-Type", "application/json")

		if backend.loginStatus != 0 {
			writer.WriteHeader(backend.loginStatus)
			_ = json.NewEncoder(writer).Encode(map[string]string{"code": backend.loginCode})
			return
		}

		_ = json.NewEncoder(writer).Encode(map[string]string{
			"accessToken":        "access-1",
			"refreshToken":       "refresh-1",
			"accessTokenExpiry":  clk.Now().Add(30 * time.Minute).Format(time.RFC3339),
			"refreshTokenExpiry": clk.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
			"userId":             "u-1",
			"email":              "admin@basms.vn",
			"fullName":           "Nguyễn Văn An",
			"roleId":             backend.roleID,
		})
	})
	mux.HandleFunc("/users/refresh-token", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"accessToken":        "access-renewed",
			"refreshToken":       "refresh-renewed",
			"accessTokenExpiry":  clk.Now().Add(30 * time.Minute).Format(time.RFC3339),
			"refreshTokenExpiry": clk.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/users/logout", func(writer http.ResponseWriter, request *http.Request) {
		backend.logoutCalls.Add(1)
		writer.WriteHeader(http.StatusNoContent)
	})

	backend.server = httptest.NewServer(mux)
	t.Cleanup(backend.server.Close)

	return backend
}

// bridgeFixture assembles a full session stack for the main scope.
type bridgeFixture struct {
	sessionContext *session.SessionContext
	manager        *session.Manager
	store          *session.CredentialStore
	kv             *session.MemoryKeyValue
	clk            *fakeClock
	backend        *fakeBackend
	navigator      *fakeNavigator
}

func newBridgeFixture(t *testing.T, deniedRoles []string) *bridgeFixture {
	t.Helper()

	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	backend := newFakeBackend(t, clk)

	scope := session.MainScope(backend.server.URL)
	kv := session.NewMemoryKeyValue()
	store := session.NewCredentialStore(kv, scope.KeyPrefix, clk)
	client := session.NewClient(scope.BaseURL, testLogger(), clk)
	manager := session.NewManager(scope, store, client, session.NoopRecorder{}, clk, testLogger())

	sessionContext := session.NewSessionContext(
		scope, store, client, manager, session.NewMemoryKeyValue(),
		session.NoopRecorder{}, deniedRoles, testLogger(),
	)

	navigator := &fakeNavigator{}
	sessionContext.SetNavigator(navigator)

	return &bridgeFixture{
		sessionContext: sessionContext,
		manager:        manager,
		store:          store,
		kv:             kv,
		clk:            clk,
		backend:        backend,
		navigator:      navigator,
	}
}

/*
TestSessionContext_Login_Success verifies the full orchestration: session
persisted, renewal armed, navigation to the role dashboard, subscriber
notified.
*/
func TestSessionContext_Login_Success(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)

	var lastState session.State
	fixture.sessionContext.OnChange(func(state session.State) { lastState = state })

	result, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)

	assert.Equal(t, "/admin/dashboard", result.RedirectTo)
	assert.Equal(t, "/admin/dashboard", fixture.navigator.CurrentPath())
	assert.Equal(t, "u-1", result.Identity.UserID)

	assert.True(t, fixture.store.IsAuthenticated(ctx))
	assert.Equal(t, 1, fixture.clk.armedTimers())

	assert.True(t, lastState.Authenticated)
	assert.Equal(t, "admin@basms.vn", lastState.Identity.Email)
}

/*
TestSessionContext_Login_RoleDenied verifies that a denylisted role is
rejected after the credential check with nothing persisted.
*/
func TestSessionContext_Login_RoleDenied(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, []string{session.RoleManager})
	fixture.backend.roleID = session.RoleManager

	_, err := fixture.sessionContext.Login(ctx, "manager@basms.vn", "secret")
	require.Error(t, err)
	assert.Equal(t, "ROLE_DENIED", apperr.CodeOf(err))

	assert.Equal(t, int64(1), fixture.backend.loginCalls.Load())
	assert.Equal(t, 0, fixture.kv.Len())
	assert.False(t, fixture.store.IsAuthenticated(ctx))
}

/*
TestSessionContext_Login_FirstLogin verifies the pre-flight: an account that
must set a password is steered away before any credential check.
*/
func TestSessionContext_Login_FirstLogin(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)
	fixture.backend.firstLogin = true

	_, err := fixture.sessionContext.Login(ctx, "new@basms.vn", "secret")
	require.Error(t, err)
	assert.Equal(t, "FIRST_LOGIN", apperr.CodeOf(err))

	assert.Equal(t, int64(0), fixture.backend.loginCalls.Load())
	assert.Equal(t, "/update-password", fixture.navigator.CurrentPath())
	assert.Equal(t, 0, fixture.kv.Len())
}

/*
TestSessionContext_Login_RepeatedFailures verifies the failure counter: the
fifth consecutive credential failure switches to the password-reset
suggestion and restarts the counting window; a success also resets the count.
*/
func TestSessionContext_Login_RepeatedFailures(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)
	fixture.backend.loginStatus = http.StatusUnauthorized

	for attempt := 1; attempt <= 4; attempt++ {
		_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "wrong")
		require.Error(t, err)
		assert.Equal(t, "INVALID_CREDENTIALS", apperr.CodeOf(err), "attempt %d", attempt)
	}

	_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "wrong")
	require.Error(t, err)
	assert.Equal(t, "PASSWORD_RESET_SUGGESTED", apperr.CodeOf(err))

	// The suggestion consumed the counter: the sixth failure opens a fresh
	// window instead of repeating the suggestion.
	_, err = fixture.sessionContext.Login(ctx, "admin@basms.vn", "wrong")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CREDENTIALS", apperr.CodeOf(err))

	// A successful login clears the counter for that email.
	fixture.backend.loginStatus = 0
	_, err = fixture.sessionContext.Login(ctx, "admin@basms.vn", "right")
	require.NoError(t, err)

	fixture.sessionContext.Logout(ctx)
	fixture.backend.loginStatus = http.StatusUnauthorized

	_, err = fixture.sessionContext.Login(ctx, "admin@basms.vn", "wrong")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CREDENTIALS", apperr.CodeOf(err))
}

/*
TestSessionContext_ForcedLogout_StashesRedirect verifies the interrupted-path
flow: a renewal failure mid-session stashes the current path, steers to
login, and the next successful login resumes where the user left off.
*/
func TestSessionContext_ForcedLogout_StashesRedirect(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)

	_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)

	// The user navigates deeper in, then the session dies.
	fixture.navigator.setPath("/admin/guards/123")
	fixture.manager.Logout(ctx, "refresh_failed")

	assert.Equal(t, "/login", fixture.navigator.CurrentPath())
	assert.False(t, fixture.store.IsAuthenticated(ctx))

	// Logging back in resumes the interrupted path, not the dashboard.
	result, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)
	assert.Equal(t, "/admin/guards/123", result.RedirectTo)

	// The stash is consumed, and an explicit logout does not restock it: a
	// further login goes to the dashboard.
	fixture.sessionContext.Logout(ctx)
	result, err = fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)
	assert.Equal(t, "/admin/dashboard", result.RedirectTo)
}

/*
TestSessionContext_Logout verifies explicit logout: backend notified, local
state cleared, navigation to the login route.
*/
func TestSessionContext_Logout(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)

	_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)

	var lastState session.State
	fixture.sessionContext.OnChange(func(state session.State) { lastState = state })

	fixture.navigator.setPath("/admin/dashboard")
	fixture.sessionContext.Logout(ctx)

	assert.Equal(t, int64(1), fixture.backend.logoutCalls.Load())
	assert.Equal(t, 0, fixture.kv.Len())
	assert.Equal(t, "/login", fixture.navigator.CurrentPath())
	assert.False(t, lastState.Authenticated)
	assert.Equal(t, 0, fixture.clk.armedTimers())
}

/*
TestSessionContext_Initialize covers the restart bootstrap: a live session
re-arms the timer, an expired access token forces an immediate renewal, and
an empty store stays quiet.
*/
func TestSessionContext_Initialize(t *testing.T) {
	t.Run("live_session_rearms_timer", func(t *testing.T) {
		ctx := context.Background()
		fixture := newBridgeFixture(t, nil)

		require.NoError(t, fixture.store.Save(ctx, testSession(fixture.clk.Now())))

		fixture.sessionContext.Initialize(ctx)
		assert.Equal(t, 1, fixture.clk.armedTimers())
		assert.True(t, fixture.store.IsAuthenticated(ctx))
	})

	t.Run("expired_access_token_forces_renewal", func(t *testing.T) {
		ctx := context.Background()
		fixture := newBridgeFixture(t, nil)

		stale := testSession(fixture.clk.Now())
		stale.AccessTokenExpiry = fixture.clk.Now().Add(-time.Minute)
		require.NoError(t, fixture.store.Save(ctx, stale))

		fixture.sessionContext.Initialize(ctx)

		loaded, err := fixture.store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "access-renewed", loaded.AccessToken)
		assert.Equal(t, 1, fixture.clk.armedTimers())
	})

	t.Run("partial_state_is_cleared", func(t *testing.T) {
		ctx := context.Background()
		fixture := newBridgeFixture(t, nil)

		// An access token whose companion keys never made it to disk.
		require.NoError(t, fixture.kv.Set(ctx, "AccessToken", "orphaned-access"))

		fixture.sessionContext.Initialize(ctx)

		assert.Equal(t, 0, fixture.kv.Len())
		assert.False(t, fixture.store.IsAuthenticated(ctx))
		assert.Equal(t, 0, fixture.clk.armedTimers())
	})

	t.Run("empty_store_stays_idle", func(t *testing.T) {
		ctx := context.Background()
		fixture := newBridgeFixture(t, nil)

		var notified bool
		var lastState session.State
		fixture.sessionContext.OnChange(func(state session.State) {
			notified = true
			lastState = state
		})

		fixture.sessionContext.Initialize(ctx)

		assert.True(t, notified)
		assert.False(t, lastState.Authenticated)
		assert.Equal(t, 0, fixture.clk.armedTimers())
	})
}
