// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/basms/sessiond/internal/platform/clock"
)

// # Key-Value Contract

// KeyValue defines the storage contract backing the [CredentialStore].
//
// Absence is a normal, representable outcome: Get returns found=false rather
// than an error when a key does not exist. Implementations must make Delete
// idempotent (deleting a missing key is not an error).
type KeyValue interface {

	/*
		Get returns the value stored under key.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - string: Stored value ("" when not found)
		  - bool: Whether the key exists
		  - error: Storage connectivity failures only
	*/
	Get(context context.Context, key string) (string, bool, error)

	/*
		Set stores value under key, overwriting any prior value.

		Parameters:
		  - context: context.Context
		  - key: string
		  - value: string

		Returns:
		  - error: Storage failures
	*/
	Set(context context.Context, key string, value string) error

	/*
		Delete removes the given keys. Missing keys are ignored.

		Parameters:
		  - context: context.Context
		  - keys: ...string

		Returns:
		  - error: Storage failures
	*/
	Delete(context context.Context, keys ...string) error
}

// # Credential Store

// CredentialStore persists the [Session] for one scope.
//
// It exclusively owns the persisted representation: the Manager and
// SessionContext always re-read through it instead of caching copies across
// renewal cycles.
//
// # Atomicity
//
// Save writes field by field; if any write fails the caller must treat the
// session as not saved. Load compensates by treating ANY missing required
// field as a fully absent session, so a torn write can never surface as a
// half-valid session.
type CredentialStore struct {
	kv     KeyValue
	prefix string
	clock  clock.Clock
}

// NewCredentialStore constructs a store scoped by the given key prefix.
func NewCredentialStore(kv KeyValue, prefix string, clk clock.Clock) *CredentialStore {
	return &CredentialStore{
		kv:     kv,
		prefix: prefix,
		clock:  clk,
	}
}

// key builds the full storage key for a suffix.
func (store *CredentialStore) key(suffix string) string {
	return store.prefix + suffix
}

/*
Save persists all Session fields, overwriting any prior value.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Storage failures (session must then be treated as not saved)
*/
func (store *CredentialStore) Save(context context.Context, session *Session) error {
	fields := map[string]string{
		keyAccessToken:        session.AccessToken,
		keyRefreshToken:       session.RefreshToken,
		keyAccessTokenExpiry:  session.AccessTokenExpiry.Format(time.RFC3339),
		keyRefreshTokenExpiry: session.RefreshTokenExpiry.Format(time.RFC3339),
		keyUserID:             session.Identity.UserID,
		keyEmail:              session.Identity.Email,
		keyFullName:           session.Identity.FullName,
		keyRoleID:             session.Identity.RoleID,
	}

	for suffix, value := range fields {
		if err := store.kv.Set(context, store.key(suffix), value); err != nil {
			return fmt.Errorf("credstore_save_failed [%s]: %w", suffix, err)
		}
	}

	return nil
}

/*
Load reads the persisted Session.

Description: Absence is a normal outcome: a nil Session with a nil error
means no (complete) session is stored. Any missing token or unparseable
expiry makes the whole session absent.

Parameters:
  - context: context.Context

Returns:
  - *Session: Hydrated session, or nil when absent/partial
  - error: Storage connectivity failures only
*/
func (store *CredentialStore) Load(context context.Context) (*Session, error) {
	accessToken, ok, err := store.kv.Get(context, store.key(keyAccessToken))
	if err != nil || !ok || accessToken == "" {
		return nil, err
	}

	refreshToken, ok, err := store.kv.Get(context, store.key(keyRefreshToken))
	if err != nil || !ok || refreshToken == "" {
		return nil, err
	}

	accessExpiry, ok, err := store.loadExpiry(context, keyAccessTokenExpiry)
	if err != nil || !ok {
		return nil, err
	}

	refreshExpiry, ok, err := store.loadExpiry(context, keyRefreshTokenExpiry)
	if err != nil || !ok {
		return nil, err
	}

	identity, err := store.LoadIdentity(context)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:        accessToken,
		RefreshToken:       refreshToken,
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
		Identity:           identity,
	}, nil
}

/*
LoadIdentity reads only the cached identity fields.

Description: Used by the UI bridge after a refresh callback, where the token
material is irrelevant and only the display attributes matter.

Parameters:
  - context: context.Context

Returns:
  - Identity: Cached attributes (zero-valued fields when absent)
  - error: Storage connectivity failures
*/
func (store *CredentialStore) LoadIdentity(context context.Context) (Identity, error) {
	identity := Identity{}

	reads := []struct {
		suffix string
		target *string
	}{
		{keyUserID, &identity.UserID},
		{keyEmail, &identity.Email},
		{keyFullName, &identity.FullName},
		{keyRoleID, &identity.RoleID},
	}

	for _, read := range reads {
		value, _, err := store.kv.Get(context, store.key(read.suffix))
		if err != nil {
			return Identity{}, fmt.Errorf("credstore_load_identity_failed [%s]: %w", read.suffix, err)
		}
		*read.target = value
	}

	return identity, nil
}

/*
Clear removes all fields for this scope's prefix.

Description: Idempotent: clearing an already-empty store succeeds and leaves
it empty. Keys of other scopes are untouched.

Parameters:
  - context: context.Context

Returns:
  - error: Storage failures
*/
func (store *CredentialStore) Clear(context context.Context) error {
	keys := []string{
		store.key(keyAccessToken),
		store.key(keyRefreshToken),
		store.key(keyAccessTokenExpiry),
		store.key(keyRefreshTokenExpiry),
		store.key(keyUserID),
		store.key(keyEmail),
		store.key(keyFullName),
		store.key(keyRoleID),
	}

	if err := store.kv.Delete(context, keys...); err != nil {
		return fmt.Errorf("credstore_clear_failed: %w", err)
	}

	return nil
}

// # Expiry Queries

// IsAccessTokenExpired reports whether now >= accessTokenExpiry.
// A missing or unparseable expiry counts as expired.
func (store *CredentialStore) IsAccessTokenExpired(context context.Context) bool {
	expiry, ok, err := store.loadExpiry(context, keyAccessTokenExpiry)
	if err != nil || !ok {
		return true
	}
	return !store.clock.Now().Before(expiry)
}

// IsRefreshTokenExpired reports whether now >= refreshTokenExpiry.
// A missing or unparseable expiry counts as expired.
func (store *CredentialStore) IsRefreshTokenExpired(context context.Context) bool {
	expiry, ok, err := store.loadExpiry(context, keyRefreshTokenExpiry)
	if err != nil || !ok {
		return true
	}
	return !store.clock.Now().Before(expiry)
}

// IsAccessTokenExpiringSoon reports whether the access token expires within
// the given threshold. A missing expiry counts as expiring.
func (store *CredentialStore) IsAccessTokenExpiringSoon(context context.Context, threshold time.Duration) bool {
	expiry, ok, err := store.loadExpiry(context, keyAccessTokenExpiry)
	if err != nil || !ok {
		return true
	}
	return expiry.Sub(store.clock.Now()) <= threshold
}

// IsAuthenticated reports whether a recoverable session exists: both tokens
// present and the refresh token not yet expired.
//
// An EXPIRED access token with a valid refresh token is still authenticated;
// the session is recoverable by a silent renewal, no re-login needed.
func (store *CredentialStore) IsAuthenticated(context context.Context) bool {
	accessToken, ok, err := store.kv.Get(context, store.key(keyAccessToken))
	if err != nil || !ok || accessToken == "" {
		return false
	}

	refreshToken, ok, err := store.kv.Get(context, store.key(keyRefreshToken))
	if err != nil || !ok || refreshToken == "" {
		return false
	}

	return !store.IsRefreshTokenExpired(context)
}

// loadExpiry reads and parses one expiry key. ok=false covers both a missing
// key and a value that does not parse as RFC 3339.
func (store *CredentialStore) loadExpiry(context context.Context, suffix string) (time.Time, bool, error) {
	raw, ok, err := store.kv.Get(context, store.key(suffix))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("credstore_load_expiry_failed [%s]: %w", suffix, err)
	}
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}

	parsed, parseErr := time.Parse(time.RFC3339, raw)
	if parseErr != nil {
		return time.Time{}, false, nil
	}

	return parsed, true, nil
}
