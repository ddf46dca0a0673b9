// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/basms/sessiond/internal/platform/ctxkey"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Session Scope

// WithScope returns a new context with the session scope name attached.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyScope, scope)
}

// GetScope retrieves the session scope name from the context.
// Returns an empty string (the main backoffice scope) if not found.
func GetScope(ctx context.Context) string {
	scope, _ := ctx.Value(ctxkey.KeyScope).(string)
	return scope
}
