// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"time"

	"github.com/basms/sessiond/internal/platform/sec"
	"github.com/basms/sessiond/pkg/pagination"
	"github.com/basms/sessiond/pkg/uuid"
)

// # Audit Trail

// EventKind classifies a session lifecycle event.
type EventKind string

const (
	EventLogin         EventKind = "login"
	EventLoginFailed   EventKind = "login_failed"
	EventRefreshed     EventKind = "refreshed"
	EventRefreshFailed EventKind = "refresh_failed"
	EventLogout        EventKind = "logout"
)

// Event is one row of the session audit trail.
//
// Tokens are never stored; only a SHA-256 fingerprint of the access token is
// kept so operators can correlate a leaked token with the session that minted
// it without the trail itself becoming a credential store.
type Event struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	Kind       EventKind `json:"kind"`
	UserID     string    `json:"userId,omitempty"`
	Email      string    `json:"email,omitempty"`
	TokenHash  string    `json:"tokenHash,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent builds an audit event. accessToken may be empty (e.g. on logout,
// where the token is already gone); when present only its hash is recorded.
func NewEvent(scope string, kind EventKind, identity Identity, detail string, accessToken string) Event {
	event := Event{
		ID:         uuid.New(),
		Scope:      scope,
		Kind:       kind,
		UserID:     identity.UserID,
		Email:      identity.Email,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}

	if accessToken != "" {
		event.TokenHash = sec.HashToken(accessToken)
	}

	return event
}

// Recorder persists session lifecycle events.
//
// Recording is best-effort everywhere it is called: audit failures are logged
// and never block the session lifecycle itself.
type Recorder interface {
	/*
		Record persists one audit event.

		Parameters:
		  - context: context.Context
		  - event: Event

		Returns:
		  - error: Persistence failures
	*/
	Record(context context.Context, event Event) error

	/*
		List returns audit events for a scope, newest first.

		Parameters:
		  - context: context.Context
		  - scope: string (scope name; "" selects the main application)
		  - params: pagination.Params

		Returns:
		  - []Event: One page of events
		  - int: Total event count for the scope
		  - error: Persistence failures
	*/
	List(context context.Context, scope string, params pagination.Params) ([]Event, int, error)
}

// NoopRecorder discards all events. Used when no database is configured.
type NoopRecorder struct{}

// Record implements [Recorder] by discarding the event.
func (NoopRecorder) Record(_ context.Context, _ Event) error {
	return nil
}

// List implements [Recorder] by returning an empty trail.
func (NoopRecorder) List(_ context.Context, _ string, _ pagination.Params) ([]Event, int, error) {
	return []Event{}, 0, nil
}
