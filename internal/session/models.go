package session

import "time"

// Session represents a tenant-scoped navigation session.
//
// Multi-tenant invariant: FleetID is required on every session.
//
// NOTE: This is a domain model only. Provider-specific payloads (raw directions
// documents) travel through the reroute layer as opaque strings and are not
// mixed into this model.

type Session struct {
	SessionID string `json:"session_id"`
	FleetID   string `json:"fleet_id"`
	DriverID  string `json:"driver_id"`

	// Profile is the routing profile the session navigates with.
	Profile string `json:"profile"`

	Status Status `json:"status"`

	// ActiveRouteID is the identifier of the most recently accepted route.
	ActiveRouteID string `json:"active_route_id,omitempty"`

	// RerouteCount is the number of accepted reroutes over the session lifetime.
	RerouteCount int `json:"reroute_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusRerouting Status = "rerouting"
	StatusOffRoute  Status = "off_route"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// RerouteEvent is the session-level record of a reroute outcome, handed to
// recorders (history ledger, audit, metering).
type RerouteEvent struct {
	FleetID   string `json:"fleet_id"`
	SessionID string `json:"session_id"`
	DriverID  string `json:"driver_id"`
	Profile   string `json:"profile"`

	// Outcome is one of detected, received, failed, cancelled.
	Outcome string `json:"outcome"`

	RouteID      string `json:"route_id,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

const (
	OutcomeDetected  = "detected"
	OutcomeReceived  = "received"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)
