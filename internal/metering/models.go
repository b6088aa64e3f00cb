package metering

import "time"

// Metering models are tenant-scoped (fleet_id required everywhere).
// Amounts are expressed in minor units (e.g., cents) using int64.

// ComputePricing defines the charge for route computations performed on behalf
// of a fleet, per routing provider.
type ComputePricing struct {
	ID      string `json:"id" db:"id"`
	FleetID string `json:"fleet_id" db:"fleet_id"`

	// Provider is the routing provider name the rate applies to
	// (e.g., "remote-directions", "onboard").
	Provider string `json:"provider" db:"provider"`

	// Profile optionally narrows the rate to one routing profile.
	Profile string `json:"profile,omitempty" db:"profile"`

	Currency string `json:"currency" db:"currency"`

	// RatePerComputeMinor is the price per billable route computation.
	RatePerComputeMinor int64 `json:"rate_per_compute_minor" db:"rate_per_compute_minor"`

	// BundleSize rounds usage up to multiples of this many computations
	// (e.g., 10 for per-ten billing, 1 for per-computation billing).
	BundleSize int `json:"bundle_size" db:"bundle_size"`

	// MinimumBillable enforces a minimum charged computation count.
	MinimumBillable int `json:"minimum_billable" db:"minimum_billable"`

	// Effective window for pricing.
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`

	Status PricingStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type PricingStatus string

const (
	PricingStatusActive   PricingStatus = "active"
	PricingStatusInactive PricingStatus = "inactive"
)
