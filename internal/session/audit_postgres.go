// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basms/sessiond/pkg/pagination"
)

// PostgresRecorder implements the [Recorder] interface using pgx.
//
// # Error Mapping
//
// Storage errors are wrapped, not mapped to [apperr.AppError]: every caller
// treats audit persistence as best-effort, so the taxonomy would never reach
// a client.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder creates a PostgreSQL implementation of Recorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

// Record persists one audit event into the session.audit table.
//
// # Parameters
//   - ctx: Context for the database operation.
//   - event: The event to persist.
func (recorder *PostgresRecorder) Record(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO session.audit (
			id, scope, kind, userid, email, tokenhash, detail, occurredat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := recorder.pool.Exec(ctx, query,
		event.ID,
		event.Scope,
		string(event.Kind),
		event.UserID,
		event.Email,
		event.TokenHash,
		event.Detail,
		event.OccurredAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_audit_record_failed: %w", err)
	}

	return nil
}

// List retrieves one page of audit events for a scope, newest first.
//
// # Returns
//
// Returns the page of events plus the total count for pagination metadata.
func (recorder *PostgresRecorder) List(ctx context.Context, scope string, params pagination.Params) ([]Event, int, error) {
	const countQuery = "SELECT COUNT(*) FROM session.audit WHERE scope = $1"

	total := 0
	if err := recorder.pool.QueryRow(ctx, countQuery, scope).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_count_failed: %w", err)
	}

	const query = `
		SELECT id, scope, kind, userid, email, tokenhash, detail, occurredat
		FROM session.audit
		WHERE scope = $1
		ORDER BY occurredat DESC
		LIMIT $2 OFFSET $3`

	rows, err := recorder.pool.Query(ctx, query, scope, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_list_failed: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event := Event{}
		kind := ""

		if err := rows.Scan(
			&event.ID,
			&event.Scope,
			&kind,
			&event.UserID,
			&event.Email,
			&event.TokenHash,
			&event.Detail,
			&event.OccurredAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_audit_scan_failed: %w", err)
		}

		event.Kind = EventKind(kind)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_rows_failed: %w", err)
	}

	return events, total, nil
}
