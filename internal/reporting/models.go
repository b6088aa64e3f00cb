package reporting

import "time"

// Reporting models are read-only aggregates over the reroute event ledger.
// Tenancy invariant: fleet_id scopes every query.

// Record is the minimal event shape reporting aggregates over.
type Record struct {
	FleetID   string
	SessionID string
	Outcome   string
	ErrorKind string
	CreatedAt time.Time
}

// Aggregate is the raw outcome breakdown a repository returns.
type Aggregate struct {
	Detected  int64
	Received  int64
	Failed    int64
	Cancelled int64

	FailuresByKind map[string]int64
	Sessions       int64
}

// FleetSummary is the reroute health summary for one fleet over a window.
type FleetSummary struct {
	FleetID string    `json:"fleet_id"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`

	Detected  int64 `json:"detected"`
	Received  int64 `json:"received"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`

	// SuccessRate is received / (received + failed), 0 when no outcomes.
	SuccessRate float64 `json:"success_rate"`

	FailuresByKind map[string]int64 `json:"failures_by_kind,omitempty"`

	// Sessions is the number of distinct sessions with reroute activity.
	Sessions int64 `json:"sessions"`
}
