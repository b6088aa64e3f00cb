package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"navigation-platform/pkg/utils"

	"github.com/google/uuid"
)

// Service records reroute outcomes into the event ledger.
//
// Ledger invariants:
// - No stats updates without a ledger entry
// - Ledger is append-only (immutable)
// - Event insert and projection update execute in one DB transaction
//
// Tenancy invariant:
// - fleet_id is required and enforced in all queries
type Service struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type RecordRequest struct {
	SessionID string `json:"session_id"`
	DriverID  string `json:"driver_id,omitempty"`
	Profile   string `json:"profile,omitempty"`
	Outcome   string `json:"outcome"`

	RouteID      string `json:"route_id,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	IdempotencyKey string `json:"idempotency_key"`

	// OccurredAt overrides the clock when the event was produced earlier
	// than it is recorded. Zero means "now".
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

func validOutcome(o string) bool {
	switch o {
	case OutcomeDetected, OutcomeReceived, OutcomeFailed, OutcomeCancelled:
		return true
	}
	return false
}

// Record appends one event and updates the session projection atomically.
// A replay with the same (session, idempotency key) returns the existing entry.
func (s *Service) Record(ctx context.Context, fleetID string, req RecordRequest) (Event, SessionStats, error) {
	if fleetID == "" || req.SessionID == "" {
		return Event{}, SessionStats{}, ErrInvalidArgument
	}
	if req.IdempotencyKey == "" {
		return Event{}, SessionStats{}, ErrInvalidArgument
	}
	if !validOutcome(req.Outcome) {
		return Event{}, SessionStats{}, ErrInvalidArgument
	}
	if req.Outcome == OutcomeReceived && req.RouteID == "" {
		return Event{}, SessionStats{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	createdAt := req.OccurredAt
	if createdAt.IsZero() {
		createdAt = now
	}

	var outEvent Event
	var outStats SessionStats

	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if existing, ok, err := findEventByIdempotency(ctx, tx, fleetID, req.SessionID, req.IdempotencyKey); err != nil {
			return err
		} else if ok {
			outEvent = existing
			return nil
		}

		entry := Event{
			ID:             uuid.NewString(),
			FleetID:        fleetID,
			SessionID:      req.SessionID,
			DriverID:       req.DriverID,
			Profile:        req.Profile,
			Outcome:        req.Outcome,
			RouteID:        req.RouteID,
			ErrorKind:      req.ErrorKind,
			ErrorMessage:   req.ErrorMessage,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      createdAt,
		}
		if err := insertEvent(ctx, tx, entry); err != nil {
			return err
		}

		stats, err := applyStatsDelta(ctx, tx, entry, now)
		if err != nil {
			return err
		}
		outEvent = entry
		outStats = stats
		return nil
	})

	return outEvent, outStats, err
}

// List returns a session's most recent events, newest first.
func (s *Service) List(ctx context.Context, fleetID, sessionID string, limit int) ([]Event, error) {
	if fleetID == "" || sessionID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return listEvents(ctx, s.db, fleetID, sessionID, limit)
}

// Stats returns the session projection.
func (s *Service) Stats(ctx context.Context, fleetID, sessionID string) (SessionStats, error) {
	if fleetID == "" || sessionID == "" {
		return SessionStats{}, ErrInvalidArgument
	}
	return getStats(ctx, s.db, fleetID, sessionID)
}
