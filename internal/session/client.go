// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/basms/sessiond/internal/platform/apperr"
	"github.com/basms/sessiond/internal/platform/clock"
	"github.com/basms/sessiond/internal/platform/constants"
	"github.com/basms/sessiond/internal/platform/sec"
)

// # Backend Client

// Client is the only component that speaks to the backend's authentication
// endpoints. It is stateless: persistence stays with the [CredentialStore],
// so callers can gate it behind business rules (role denylist, first-login
// detection) before committing a session.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	clock      clock.Clock
}

// NewClient constructs a backend auth client for one scope's base URL.
func NewClient(baseURL string, logger *slog.Logger, clk clock.Clock) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: constants.BackendCallTimeout,
		},
		logger: logger,
		clock:  clk,
	}
}

// # Wire Payloads

// tokenResponse is the shape shared by the login and refresh endpoints.
// fullName and roleId are not guaranteed on refresh responses.
type tokenResponse struct {
	AccessToken        string `json:"accessToken"`
	RefreshToken       string `json:"refreshToken"`
	AccessTokenExpiry  string `json:"accessTokenExpiry"`
	RefreshTokenExpiry string `json:"refreshTokenExpiry"`
	UserID             string `json:"userId"`
	Email              string `json:"email"`
	FullName           string `json:"fullName"`
	RoleID             string `json:"roleId"`
}

// errorResponse is the backend's error envelope. The human-readable text
// arrives in either field depending on the endpoint's vintage.
type errorResponse struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// detail returns the backend's error text, whichever field carried it.
func (envelope errorResponse) detail() string {
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}

// FirstLoginStatus is the result of the pre-flight first-login probe.
type FirstLoginStatus struct {
	IsFirstLogin bool   `json:"isFirstLogin"`
	Email        string `json:"email"`
	LoginCount   int    `json:"loginCount"`
}

// # Operations

/*
CheckFirstLogin probes whether the account must set a password before login.

Description: Runs BEFORE the credential-verifying login call, as a separate
pre-flight request, so no session state is created for accounts that must
first set a password. Note: this mirrors the existing platform behavior and
is observable as an email-existence oracle, see DESIGN.md before changing.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *FirstLoginStatus: Probe result
  - error: Upstream failures
*/
func (client *Client) CheckFirstLogin(context context.Context, email string) (*FirstLoginStatus, error) {
	body, status, err := client.post(context, "/users/check-first-login",
		map[string]string{"Email": email}, "")
	if err != nil {
		return nil, apperr.Upstream(err)
	}

	if status < 200 || status > 299 {
		// A 404 here just means the probe cannot decide; the real login call
		// will surface the definitive account error.
		return &FirstLoginStatus{IsFirstLogin: false, Email: email}, nil
	}

	result := &FirstLoginStatus{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("authclient_first_login_decode_failed: %w", err)
	}

	return result, nil
}

/*
Login authenticates credentials against the backend.

Description: On success the returned Session is NOT persisted; the caller
commits it explicitly after its own checks. Missing expiry fields are
normalized: the access-token expiry is recovered from the JWT 'exp' claim
when parseable, otherwise defaulted (30m access / 30d refresh, from now).

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Session: Token material and identity, not yet persisted
  - error: Session failure taxonomy (INVALID_CREDENTIALS, ACCOUNT_INACTIVE, ...)
*/
func (client *Client) Login(context context.Context, email, password string) (*Session, error) {
	body, status, err := client.post(context, "/auth/login",
		map[string]string{"Email": email, "Password": password}, "")
	if err != nil {
		return nil, mapLoginFailure(0, "", err)
	}

	if status < 200 || status > 299 {
		envelope := errorResponse{}
		_ = json.Unmarshal(body, &envelope)

		cause := fmt.Errorf("authclient_login_status_%d", status)
		if detail := envelope.detail(); detail != "" {
			cause = fmt.Errorf("authclient_login_status_%d: %s", status, detail)
		}
		return nil, mapLoginFailure(status, envelope.Code, cause)
	}

	payload := tokenResponse{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, mapLoginFailure(0, "", fmt.Errorf("authclient_login_decode_failed: %w", err))
	}

	return client.normalize(payload), nil
}

/*
Refresh exchanges a refresh token for new token material.

Description: Does not persist the result; the Manager commits it only after
verifying the session was not torn down while the call was in flight.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Session: New token material (identity fields may be empty)
  - error: REFRESH_FAILED wrapping the transport or backend failure
*/
func (client *Client) Refresh(context context.Context, refreshToken string) (*Session, error) {
	body, status, err := client.post(context, "/users/refresh-token",
		map[string]string{"RefreshToken": refreshToken}, "")
	if err != nil {
		return nil, errRefreshFailed(err)
	}

	if status < 200 || status > 299 {
		return nil, errRefreshFailed(fmt.Errorf("authclient_refresh_status_%d", status))
	}

	payload := tokenResponse{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errRefreshFailed(fmt.Errorf("authclient_refresh_decode_failed: %w", err))
	}

	return client.normalize(payload), nil
}

/*
Logout notifies the backend that the session ended.

Description: Best-effort. A network failure is logged and swallowed because
local session teardown must proceed regardless of backend reachability.

Parameters:
  - context: context.Context
  - accessToken: string
*/
func (client *Client) Logout(context context.Context, accessToken string) {
	_, status, err := client.post(context, "/users/logout",
		map[string]string{"AccessToken": accessToken}, accessToken)

	if err != nil {
		client.logger.Warn("remote_logout_failed", slog.Any("error", err))
		return
	}

	if status < 200 || status > 299 {
		client.logger.Warn("remote_logout_rejected", slog.Int("status", status))
	}
}

// # Helpers

// normalize converts a wire payload into a [Session], filling absent expiries.
func (client *Client) normalize(payload tokenResponse) *Session {
	now := client.clock.Now()

	accessExpiry := parseExpiry(payload.AccessTokenExpiry)
	if accessExpiry.IsZero() {
		// The JWT itself usually knows better than our default.
		accessExpiry = sec.PeekExpiry(payload.AccessToken)
	}
	if accessExpiry.IsZero() {
		accessExpiry = now.Add(constants.DefaultAccessTokenTTL)
	}

	refreshExpiry := parseExpiry(payload.RefreshTokenExpiry)
	if refreshExpiry.IsZero() {
		refreshExpiry = now.Add(constants.DefaultRefreshTokenTTL)
	}

	return &Session{
		AccessToken:        payload.AccessToken,
		RefreshToken:       payload.RefreshToken,
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
		Identity: Identity{
			UserID:   payload.UserID,
			Email:    payload.Email,
			FullName: payload.FullName,
			RoleID:   payload.RoleID,
		},
	}
}

// parseExpiry parses an ISO-8601 timestamp, returning the zero time when absent.
func parseExpiry(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// post sends a JSON body to an endpoint and returns the raw response.
// bearer, when non-empty, is attached as an Authorization header.
func (client *Client) post(ctx context.Context, path string, payload any, bearer string) ([]byte, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("authclient_encode_failed: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("authclient_request_failed: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set(constants.HeaderAuthorization, "Bearer "+bearer)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, 0, fmt.Errorf("authclient_call_failed [%s]: %w", path, err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, response.StatusCode, fmt.Errorf("authclient_read_failed [%s]: %w", path, err)
	}

	return body, response.StatusCode, nil
}
