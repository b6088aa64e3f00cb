package history

import "time"

// Event is one row of the append-only reroute event ledger.
//
// Multi-tenant invariant: FleetID is required on every row.
// The ledger is immutable; session statistics live in a projection table
// updated atomically alongside event inserts.
type Event struct {
	ID        string `json:"id" db:"id"`
	FleetID   string `json:"fleet_id" db:"fleet_id"`
	SessionID string `json:"session_id" db:"session_id"`
	DriverID  string `json:"driver_id,omitempty" db:"driver_id"`
	Profile   string `json:"profile,omitempty" db:"profile"`

	// Outcome is one of detected, received, failed, cancelled.
	Outcome string `json:"outcome" db:"outcome"`

	RouteID      string `json:"route_id,omitempty" db:"route_id"`
	ErrorKind    string `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	OutcomeDetected  = "detected"
	OutcomeReceived  = "received"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// SessionStats is the per-session projection over the event ledger.
type SessionStats struct {
	FleetID   string `json:"fleet_id" db:"fleet_id"`
	SessionID string `json:"session_id" db:"session_id"`

	DetectedCount  int64 `json:"detected_count" db:"detected_count"`
	ReceivedCount  int64 `json:"received_count" db:"received_count"`
	FailedCount    int64 `json:"failed_count" db:"failed_count"`
	CancelledCount int64 `json:"cancelled_count" db:"cancelled_count"`

	LastRouteID string    `json:"last_route_id,omitempty" db:"last_route_id"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
