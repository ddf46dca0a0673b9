// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basms/sessiond/internal/session"
)

// testSession builds a live session relative to now.
func testSession(now time.Time) *session.Session {
	return &session.Session{
		AccessToken:        "access-token-1",
		RefreshToken:       "refresh-token-1",
		AccessTokenExpiry:  now.Add(30 * time.Minute),
		RefreshTokenExpiry: now.Add(30 * 24 * time.Hour),
		Identity: session.Identity{
			UserID:   "u-1",
			Email:    "admin@basms.vn",
			FullName: "Nguyễn Văn An",
			RoleID:   session.RoleAdmin,
		},
	}
}

/*
TestCredentialStore_SaveLoad verifies the persistence round trip.
*/
func TestCredentialStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := session.NewCredentialStore(session.NewMemoryKeyValue(), "", clk)

	saved := testSession(clk.Now())
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.True(t, saved.AccessTokenExpiry.Equal(loaded.AccessTokenExpiry))
	assert.True(t, saved.RefreshTokenExpiry.Equal(loaded.RefreshTokenExpiry))
	assert.Equal(t, saved.Identity, loaded.Identity)
}

/*
TestCredentialStore_Load_MissingField verifies that a partially populated
store reads as "no session" rather than a corrupt one.
*/
func TestCredentialStore_Load_MissingField(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	kv := session.NewMemoryKeyValue()
	store := session.NewCredentialStore(kv, "", clk)

	require.NoError(t, store.Save(ctx, testSession(clk.Now())))
	require.NoError(t, kv.Delete(ctx, "AccessToken"))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

/*
TestCredentialStore_PrefixIsolation verifies that two scopes sharing one
backend never see each other's credentials.
*/
func TestCredentialStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	kv := session.NewMemoryKeyValue()

	mainStore := session.NewCredentialStore(kv, "", clk)
	econtractStore := session.NewCredentialStore(kv, "eContract", clk)

	mainSession := testSession(clk.Now())
	econtractSession := testSession(clk.Now())
	econtractSession.AccessToken = "econtract-access"
	econtractSession.RefreshToken = "econtract-refresh"

	require.NoError(t, mainStore.Save(ctx, mainSession))
	require.NoError(t, econtractStore.Save(ctx, econtractSession))

	// Clearing the main scope must leave the eContract scope intact.
	require.NoError(t, mainStore.Clear(ctx))

	mainLoaded, err := mainStore.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, mainLoaded)

	econtractLoaded, err := econtractStore.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, econtractLoaded)
	assert.Equal(t, "econtract-access", econtractLoaded.AccessToken)
}

/*
TestCredentialStore_ExpiryChecks covers the expiry predicates, including the
missing-value and corrupt-timestamp conventions.
*/
func TestCredentialStore_ExpiryChecks(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		setup           func(ctx context.Context, store *session.CredentialStore, kv *session.MemoryKeyValue, now time.Time)
		advance         time.Duration
		expectedExpired bool
	}{
		{
			name: "live_token",
			setup: func(ctx context.Context, store *session.CredentialStore, _ *session.MemoryKeyValue, now time.Time) {
				_ = store.Save(ctx, testSession(now))
			},
			expectedExpired: false,
		},
		{
			name: "lapsed_token",
			setup: func(ctx context.Context, store *session.CredentialStore, _ *session.MemoryKeyValue, now time.Time) {
				_ = store.Save(ctx, testSession(now))
			},
			advance:         31 * time.Minute,
			expectedExpired: true,
		},
		{
			name: "exactly_at_expiry",
			setup: func(ctx context.Context, store *session.CredentialStore, _ *session.MemoryKeyValue, now time.Time) {
				_ = store.Save(ctx, testSession(now))
			},
			advance:         30 * time.Minute,
			expectedExpired: true,
		},
		{
			name:            "missing_expiry",
			setup:           func(context.Context, *session.CredentialStore, *session.MemoryKeyValue, time.Time) {},
			expectedExpired: true,
		},
		{
			name: "corrupt_expiry",
			setup: func(ctx context.Context, store *session.CredentialStore, kv *session.MemoryKeyValue, now time.Time) {
				_ = store.Save(ctx, testSession(now))
				_ = kv.Set(ctx, "AccessTokenExpiry", "not-a-timestamp")
			},
			expectedExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clk := newFakeClock(start)
			kv := session.NewMemoryKeyValue()
			store := session.NewCredentialStore(kv, "", clk)

			tt.setup(ctx, store, kv, clk.Now())
			clk.Advance(tt.advance)

			assert.Equal(t, tt.expectedExpired, store.IsAccessTokenExpired(ctx))
		})
	}
}

/*
TestCredentialStore_IsAccessTokenExpiringSoon checks the renewal-window
predicate around its boundary.
*/
func TestCredentialStore_IsAccessTokenExpiringSoon(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := session.NewCredentialStore(session.NewMemoryKeyValue(), "", clk)

	require.NoError(t, store.Save(ctx, testSession(clk.Now())))

	assert.False(t, store.IsAccessTokenExpiringSoon(ctx, 5*time.Minute))

	// 26 minutes in: 4 minutes remain, inside the 5 minute window.
	clk.Advance(26 * time.Minute)
	assert.True(t, store.IsAccessTokenExpiringSoon(ctx, 5*time.Minute))
}

/*
TestCredentialStore_Clear verifies full teardown and idempotency.
*/
func TestCredentialStore_Clear(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	kv := session.NewMemoryKeyValue()
	store := session.NewCredentialStore(kv, "", clk)

	require.NoError(t, store.Save(ctx, testSession(clk.Now())))
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, 0, kv.Len())
	assert.False(t, store.IsAuthenticated(ctx))

	// Clearing an already empty store is not an error.
	require.NoError(t, store.Clear(ctx))
}

/*
TestCredentialStore_IsAuthenticated covers the session-liveness predicate.
*/
func TestCredentialStore_IsAuthenticated(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	store := session.NewCredentialStore(session.NewMemoryKeyValue(), "", clk)

	assert.False(t, store.IsAuthenticated(ctx))

	require.NoError(t, store.Save(ctx, testSession(clk.Now())))
	assert.True(t, store.IsAuthenticated(ctx))

	// An expired access token alone does not end the session; the refresh
	// token can still renew it.
	clk.Advance(time.Hour)
	assert.True(t, store.IsAuthenticated(ctx))

	// A lapsed refresh token does.
	clk.Advance(31 * 24 * time.Hour)
	assert.False(t, store.IsAuthenticated(ctx))
}
