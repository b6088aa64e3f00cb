package reporting

import (
	"context"
	"time"
)

// MemoryRepo aggregates over an in-memory record slice. Useful for tests and
// early development.
//
// NOTE: This is not intended for production; replace with the Postgres implementation.
type MemoryRepo struct {
	Records []Record
}

func (r *MemoryRepo) AggregateFleet(ctx context.Context, fleetID string, from, to time.Time) (Aggregate, error) {
	_ = ctx

	agg := Aggregate{FailuresByKind: map[string]int64{}}
	sessions := map[string]struct{}{}

	for _, rec := range r.Records {
		if rec.FleetID != fleetID {
			continue
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}

		sessions[rec.SessionID] = struct{}{}
		switch rec.Outcome {
		case "detected":
			agg.Detected++
		case "received":
			agg.Received++
		case "failed":
			agg.Failed++
			if rec.ErrorKind != "" {
				agg.FailuresByKind[rec.ErrorKind]++
			}
		case "cancelled":
			agg.Cancelled++
		}
	}

	agg.Sessions = int64(len(sessions))
	return agg, nil
}
