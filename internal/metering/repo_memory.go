package metering

import (
	"context"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early development.
// It is fleet-scoped and matches providers exactly; a row with an empty Profile
// acts as the fleet-wide fallback for the provider.
//
// NOTE: This is not intended for production; replace with Postgres implementation.
type MemoryRepo struct {
	Compute []ComputePricing
}

func (r *MemoryRepo) FindComputePricing(ctx context.Context, fleetID, provider, profile string, at time.Time) (ComputePricing, bool, error) {
	_ = ctx

	// Prefer an exact profile match, then the provider-wide fallback,
	// and within each the most recent effective row.
	var best ComputePricing
	found := false

	for _, p := range r.Compute {
		if p.FleetID != fleetID {
			continue
		}
		if p.Provider != provider {
			continue
		}
		if p.Profile != "" && p.Profile != profile {
			continue
		}
		if p.Status != PricingStatusActive {
			continue
		}
		if at.Before(p.EffectiveFrom) {
			continue
		}
		if p.EffectiveTo != nil && !at.Before(*p.EffectiveTo) {
			continue
		}

		better := !found ||
			(p.Profile != "" && best.Profile == "") ||
			(p.Profile == best.Profile && p.EffectiveFrom.After(best.EffectiveFrom))
		if better {
			best = p
			found = true
		}
	}

	return best, found, nil
}
