package reporting

import (
	"context"
	"errors"
	"time"
)

// Service builds reroute health summaries for fleet operators and analysts.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidReportReq = errors.New("reporting: invalid report request")

// Repository abstracts aggregate queries over the reroute event ledger.
type Repository interface {
	AggregateFleet(ctx context.Context, fleetID string, from, to time.Time) (Aggregate, error)
}

// FleetSummary aggregates reroute outcomes for a fleet. A zero window defaults
// to the trailing 24 hours.
func (s *Service) FleetSummary(ctx context.Context, fleetID string, from, to time.Time) (FleetSummary, error) {
	if fleetID == "" {
		return FleetSummary{}, ErrInvalidReportReq
	}
	if to.IsZero() {
		to = s.clock().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		return FleetSummary{}, ErrInvalidReportReq
	}

	agg, err := s.repo.AggregateFleet(ctx, fleetID, from, to)
	if err != nil {
		return FleetSummary{}, err
	}

	out := FleetSummary{
		FleetID:        fleetID,
		From:           from,
		To:             to,
		Detected:       agg.Detected,
		Received:       agg.Received,
		Failed:         agg.Failed,
		Cancelled:      agg.Cancelled,
		FailuresByKind: agg.FailuresByKind,
		Sessions:       agg.Sessions,
	}
	if total := agg.Received + agg.Failed; total > 0 {
		out.SuccessRate = float64(agg.Received) / float64(total)
	}
	return out, nil
}
