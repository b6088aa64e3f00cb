package history

import (
	"context"

	"navigation-platform/internal/session"

	"github.com/google/uuid"
)

// Recorder adapts the ledger service to the session manager's recorder hook.
type Recorder struct {
	svc *Service
}

func NewRecorder(svc *Service) *Recorder {
	return &Recorder{svc: svc}
}

func (r *Recorder) RecordReroute(ctx context.Context, ev session.RerouteEvent) error {
	_, _, err := r.svc.Record(ctx, ev.FleetID, RecordRequest{
		SessionID:      ev.SessionID,
		DriverID:       ev.DriverID,
		Profile:        ev.Profile,
		Outcome:        ev.Outcome,
		RouteID:        ev.RouteID,
		ErrorKind:      ev.ErrorKind,
		ErrorMessage:   ev.ErrorMessage,
		IdempotencyKey: uuid.NewString(),
		OccurredAt:     ev.OccurredAt,
	})
	return err
}
