package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.FleetID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogConfigChange records a reroute configuration change on a session.
func (s *Service) LogConfigChange(ctx context.Context, fleetID, actorUserID, actorRole, ip, sessionID, metadata string) error {
	return s.Append(ctx, Event{
		FleetID:     fleetID,
		Type:        EventTypeConfigChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		SessionID:   sessionID,
		Message:     "reroute config changed",
		Metadata:    metadata,
	})
}

// LogForcedReroute records an operator-triggered reroute.
func (s *Service) LogForcedReroute(ctx context.Context, fleetID, actorUserID, actorRole, ip, sessionID string) error {
	return s.Append(ctx, Event{
		FleetID:     fleetID,
		Type:        EventTypeForcedReroute,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		SessionID:   sessionID,
		Message:     "reroute forced",
	})
}
