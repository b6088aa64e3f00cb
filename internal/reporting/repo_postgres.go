package reporting

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo aggregates directly over the reroute_events ledger table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) AggregateFleet(ctx context.Context, fleetID string, from, to time.Time) (Aggregate, error) {
	const outcomesQ = `
SELECT outcome, COUNT(*)
FROM reroute_events
WHERE fleet_id = $1 AND created_at >= $2 AND created_at < $3
GROUP BY outcome
`
	agg := Aggregate{FailuresByKind: map[string]int64{}}

	rows, err := r.db.QueryContext(ctx, outcomesQ, fleetID, from, to)
	if err != nil {
		return Aggregate{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return Aggregate{}, err
		}
		switch outcome {
		case "detected":
			agg.Detected = n
		case "received":
			agg.Received = n
		case "failed":
			agg.Failed = n
		case "cancelled":
			agg.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return Aggregate{}, err
	}

	const kindsQ = `
SELECT error_kind, COUNT(*)
FROM reroute_events
WHERE fleet_id = $1 AND created_at >= $2 AND created_at < $3
  AND outcome = 'failed' AND error_kind <> ''
GROUP BY error_kind
`
	kindRows, err := r.db.QueryContext(ctx, kindsQ, fleetID, from, to)
	if err != nil {
		return Aggregate{}, err
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var kind string
		var n int64
		if err := kindRows.Scan(&kind, &n); err != nil {
			return Aggregate{}, err
		}
		agg.FailuresByKind[kind] = n
	}
	if err := kindRows.Err(); err != nil {
		return Aggregate{}, err
	}

	const sessionsQ = `
SELECT COUNT(DISTINCT session_id)
FROM reroute_events
WHERE fleet_id = $1 AND created_at >= $2 AND created_at < $3
`
	if err := r.db.QueryRowContext(ctx, sessionsQ, fleetID, from, to).Scan(&agg.Sessions); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}
