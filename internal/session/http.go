// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/basms/sessiond/internal/platform/request"
	"github.com/basms/sessiond/internal/platform/respond"
	"github.com/basms/sessiond/internal/platform/validate"
	"github.com/basms/sessiond/pkg/pagination"
)

// # Definitions & Constructors

// Handler exposes one scope's session lifecycle over HTTP.
//
// # Scope
//
// The handler is a thin transport layer over [SessionContext]: status codes,
// JSON envelopes, and input validation live here; every lifecycle decision
// lives in the context and the Manager behind it.
type Handler struct {
	sessionContext *SessionContext
	audit          Recorder
	scopeName      string
}

// NewHandler constructs a [Handler] for one scope.
func NewHandler(sessionContext *SessionContext, audit Recorder) *Handler {
	return &Handler{
		sessionContext: sessionContext,
		audit:          audit,
		scopeName:      sessionContext.scope.Name,
	}
}

// Routes returns a [chi.Router] configured with the session lifecycle routes.
//
// # Endpoints
//   - POST /login   : Authenticates and establishes the scope's session.
//   - POST /logout  : Terminates the session (always succeeds locally).
//   - POST /refresh : Forces an immediate silent renewal.
//   - GET  /        : Reports the current session state.
//   - GET  /audit   : Lists the scope's audit trail, newest first.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Post("/logout", handler.logout)
	router.Post("/refresh", handler.refresh)
	router.Get("/", handler.state)
	router.Get("/audit", handler.auditTrail)

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
Login authenticates credentials and establishes the scope's session.

POST /api/v1/session/login

Description: Runs the full orchestration (first-login pre-flight, credential
check, role denylist, persistence, silent-renewal scheduling) and reports
where the client should land next.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: LoginResult: Identity and redirect target
  - 401: INVALID_CREDENTIALS / PASSWORD_RESET_SUGGESTED
  - 403: ACCOUNT_INACTIVE / ROLE_DENIED
  - 404: ACCOUNT_NOT_FOUND
  - 409: FIRST_LOGIN: Password must be set before first login
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.sessionContext.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"user":       result.Identity,
		"redirectTo": result.RedirectTo,
	})
}

/*
Logout terminates the scope's session.

POST /api/v1/session/logout

Description: Notifies the backend best-effort and always completes local
teardown, so the response is 204 regardless of backend reachability.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	handler.sessionContext.Logout(request.Context())
	respond.NoContent(writer)
}

/*
Refresh forces an immediate silent renewal.

POST /api/v1/session/refresh

Description: Runs the same renewal path as the timer. On failure the session
has already been torn down by the logout funnel, so the client must
re-authenticate.

Response:
  - 200: State: Refreshed session state
  - 401: SESSION_EXPIRED: Renewal failed; session terminated
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	if !handler.sessionContext.manager.ForceRefresh(request.Context()) {
		respond.Error(writer, request, errSessionExpired())
		return
	}

	respond.OK(writer, handler.sessionContext.CurrentState(request.Context()))
}

/*
State reports the current session state for this scope.

GET /api/v1/session

Response:
  - 200: State: Authenticated flag plus identity when authenticated
*/
func (handler *Handler) state(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.sessionContext.CurrentState(request.Context()))
}

/*
AuditTrail lists this scope's session lifecycle events, newest first.

GET /api/v1/session/audit?page=1&limit=20

Response:
  - 200: []Event: One page of events with pagination metadata
*/
func (handler *Handler) auditTrail(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	events, total, err := handler.audit.List(request.Context(), handler.scopeName, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, events, pagination.NewMeta(params.Page, params.Limit, total))
}
