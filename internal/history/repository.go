package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// NOTE: This repository assumes the following tables exist:
// - reroute_events (immutable append-only)
// - session_reroute_stats (projection)
//
// It also assumes an idempotency constraint:
// UNIQUE (session_id, idempotency_key)

func insertEvent(ctx context.Context, tx *sql.Tx, e Event) error {
	const q = `
INSERT INTO reroute_events (
  id, fleet_id, session_id, driver_id, profile, outcome, route_id,
  error_kind, error_message, idempotency_key, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.FleetID,
		e.SessionID,
		e.DriverID,
		e.Profile,
		e.Outcome,
		e.RouteID,
		e.ErrorKind,
		e.ErrorMessage,
		e.IdempotencyKey,
		e.CreatedAt,
	)
	return err
}

func findEventByIdempotency(ctx context.Context, tx *sql.Tx, fleetID, sessionID, key string) (Event, bool, error) {
	const q = `
SELECT id, fleet_id, session_id, driver_id, profile, outcome, route_id,
       error_kind, error_message, idempotency_key, created_at
FROM reroute_events
WHERE fleet_id = $1 AND session_id = $2 AND idempotency_key = $3
LIMIT 1
`
	var e Event
	err := tx.QueryRowContext(ctx, q, fleetID, sessionID, key).Scan(
		&e.ID,
		&e.FleetID,
		&e.SessionID,
		&e.DriverID,
		&e.Profile,
		&e.Outcome,
		&e.RouteID,
		&e.ErrorKind,
		&e.ErrorMessage,
		&e.IdempotencyKey,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, false, nil
		}
		return Event{}, false, err
	}
	return e, true, nil
}

func applyStatsDelta(ctx context.Context, tx *sql.Tx, e Event, now time.Time) (SessionStats, error) {
	var detected, received, failed, cancelled int64
	switch e.Outcome {
	case OutcomeDetected:
		detected = 1
	case OutcomeReceived:
		received = 1
	case OutcomeFailed:
		failed = 1
	case OutcomeCancelled:
		cancelled = 1
	}

	const q = `
INSERT INTO session_reroute_stats (
  fleet_id, session_id, detected_count, received_count, failed_count, cancelled_count, last_route_id, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (fleet_id, session_id)
DO UPDATE SET detected_count  = session_reroute_stats.detected_count  + EXCLUDED.detected_count,
              received_count  = session_reroute_stats.received_count  + EXCLUDED.received_count,
              failed_count    = session_reroute_stats.failed_count    + EXCLUDED.failed_count,
              cancelled_count = session_reroute_stats.cancelled_count + EXCLUDED.cancelled_count,
              last_route_id   = CASE WHEN EXCLUDED.last_route_id <> '' THEN EXCLUDED.last_route_id
                                     ELSE session_reroute_stats.last_route_id END,
              updated_at      = EXCLUDED.updated_at
RETURNING fleet_id, session_id, detected_count, received_count, failed_count, cancelled_count, last_route_id, updated_at
`
	var s SessionStats
	if err := tx.QueryRowContext(ctx, q,
		e.FleetID, e.SessionID, detected, received, failed, cancelled, e.RouteID, now,
	).Scan(
		&s.FleetID,
		&s.SessionID,
		&s.DetectedCount,
		&s.ReceivedCount,
		&s.FailedCount,
		&s.CancelledCount,
		&s.LastRouteID,
		&s.UpdatedAt,
	); err != nil {
		return SessionStats{}, err
	}
	return s, nil
}

func getStats(ctx context.Context, db *sql.DB, fleetID, sessionID string) (SessionStats, error) {
	const q = `
SELECT fleet_id, session_id, detected_count, received_count, failed_count, cancelled_count, last_route_id, updated_at
FROM session_reroute_stats
WHERE fleet_id = $1 AND session_id = $2
`
	var s SessionStats
	if err := db.QueryRowContext(ctx, q, fleetID, sessionID).Scan(
		&s.FleetID,
		&s.SessionID,
		&s.DetectedCount,
		&s.ReceivedCount,
		&s.FailedCount,
		&s.CancelledCount,
		&s.LastRouteID,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionStats{}, ErrNotFound
		}
		return SessionStats{}, err
	}
	return s, nil
}

func listEvents(ctx context.Context, db *sql.DB, fleetID, sessionID string, limit int) ([]Event, error) {
	const q = `
SELECT id, fleet_id, session_id, driver_id, profile, outcome, route_id,
       error_kind, error_message, idempotency_key, created_at
FROM reroute_events
WHERE fleet_id = $1 AND session_id = $2
ORDER BY created_at DESC
LIMIT $3
`
	rows, err := db.QueryContext(ctx, q, fleetID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.FleetID,
			&e.SessionID,
			&e.DriverID,
			&e.Profile,
			&e.Outcome,
			&e.RouteID,
			&e.ErrorKind,
			&e.ErrorMessage,
			&e.IdempotencyKey,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
