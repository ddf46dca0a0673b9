// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basms/sessiond/internal/session"
)

// doRequest runs one request through a scope handler's router.
func doRequest(t *testing.T, handler *session.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, request)
	return recorder
}

/*
TestHandler_Login covers the transport layer: input validation, the error
envelope for a failed login, and the success envelope with its redirect hint.
*/
func TestHandler_Login(t *testing.T) {
	t.Run("rejects_malformed_email", func(t *testing.T) {
		fixture := newBridgeFixture(t, nil)
		handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

		recorder := doRequest(t, handler, http.MethodPost, "/login",
			`{"email":"not-an-email","password":"secret"}`)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		envelope := map[string]any{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
		assert.Equal(t, "VALIDATION_ERROR", envelope["code"])

		// Validation failures never reach the backend.
		assert.Equal(t, int64(0), fixture.backend.loginCalls.Load())
	})

	t.Run("maps_credential_failure", func(t *testing.T) {
		fixture := newBridgeFixture(t, nil)
		fixture.backend.loginStatus = http.StatusUnauthorized
		handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

		recorder := doRequest(t, handler, http.MethodPost, "/login",
			`{"email":"admin@basms.vn","password":"wrong"}`)

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)

		envelope := map[string]any{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
		assert.Equal(t, "INVALID_CREDENTIALS", envelope["code"])
	})

	t.Run("returns_redirect_hint", func(t *testing.T) {
		fixture := newBridgeFixture(t, nil)
		handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

		recorder := doRequest(t, handler, http.MethodPost, "/login",
			`{"email":"admin@basms.vn","password":"secret"}`)

		require.Equal(t, http.StatusOK, recorder.Code)

		envelope := struct {
			Data struct {
				RedirectTo string `json:"redirectTo"`
				User       struct {
					UserID string `json:"userId"`
				} `json:"user"`
			} `json:"data"`
		}{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))

		assert.Equal(t, "/admin/dashboard", envelope.Data.RedirectTo)
		assert.Equal(t, "u-1", envelope.Data.User.UserID)
	})
}

/*
TestHandler_SessionState verifies GET / before and after login.
*/
func TestHandler_SessionState(t *testing.T) {
	ctx := context.Background()
	fixture := newBridgeFixture(t, nil)
	handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

	recorder := doRequest(t, handler, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	envelope := struct {
		Data session.State `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Authenticated)

	_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
	require.NoError(t, err)

	recorder = doRequest(t, handler, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Authenticated)
	assert.Equal(t, "u-1", envelope.Data.Identity.UserID)
}

/*
TestHandler_Logout verifies the always-204 contract, even with no session.
*/
func TestHandler_Logout(t *testing.T) {
	fixture := newBridgeFixture(t, nil)
	handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

	recorder := doRequest(t, handler, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

/*
TestHandler_Refresh verifies the forced-renewal endpoint for both a live and
a dead session.
*/
func TestHandler_Refresh(t *testing.T) {
	t.Run("renews_live_session", func(t *testing.T) {
		ctx := context.Background()
		fixture := newBridgeFixture(t, nil)
		handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

		_, err := fixture.sessionContext.Login(ctx, "admin@basms.vn", "secret")
		require.NoError(t, err)

		recorder := doRequest(t, handler, http.MethodPost, "/refresh", "")
		assert.Equal(t, http.StatusOK, recorder.Code)

		loaded, err := fixture.store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "access-renewed", loaded.AccessToken)
	})

	t.Run("rejects_without_session", func(t *testing.T) {
		fixture := newBridgeFixture(t, nil)
		handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

		recorder := doRequest(t, handler, http.MethodPost, "/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)

		envelope := map[string]any{}
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
		assert.Equal(t, "SESSION_EXPIRED", envelope["code"])
	})
}

/*
TestHandler_AuditTrail verifies the listing endpoint against the no-op
recorder: an empty page with correct metadata.
*/
func TestHandler_AuditTrail(t *testing.T) {
	fixture := newBridgeFixture(t, nil)
	handler := session.NewHandler(fixture.sessionContext, session.NoopRecorder{})

	recorder := doRequest(t, handler, http.MethodGet, "/audit?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	envelope := struct {
		Data []session.Event `json:"data"`
		Meta struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"meta"`
	}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))

	assert.Empty(t, envelope.Data)
	assert.Equal(t, 1, envelope.Meta.Page)
	assert.Equal(t, 10, envelope.Meta.Limit)
	assert.Equal(t, 0, envelope.Meta.Total)
}
