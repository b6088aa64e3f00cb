package metering

import (
	"context"
	"errors"
	"time"
)

// Service calculates route-computation costs based on fleet-scoped pricing.
//
// Contract:
// - Rates are resolved per (fleet, provider, profile), profile optional.
// - No routing provider calls; pure calculation + repository lookups.
type Service struct {
	repo  RateRepository
	clock func() time.Time
}

func NewService(repo RateRepository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type UsageCostRequest struct {
	FleetID  string
	Provider string
	Profile  string

	// Computations is the number of route computations performed.
	Computations int

	// At determines which effective pricing to use. If zero, service clock is used.
	At time.Time
}

type UsageCost struct {
	FleetID  string
	Provider string
	Profile  string

	Currency string

	BillableComputations int

	RatePerComputeMinor int64
	TotalMinor          int64
}

var (
	ErrPricingNotFound = errors.New("metering: pricing not found")
	ErrInvalidUsageReq = errors.New("metering: invalid usage request")
)

// CalculateUsageCost computes the charge for a batch of route computations.
func (s *Service) CalculateUsageCost(ctx context.Context, req UsageCostRequest) (UsageCost, error) {
	if req.FleetID == "" || req.Provider == "" {
		return UsageCost{}, ErrInvalidUsageReq
	}
	if req.Computations <= 0 {
		return UsageCost{}, ErrInvalidUsageReq
	}

	at := req.At
	if at.IsZero() {
		at = s.clock().UTC()
	}

	cp, ok, err := s.repo.FindComputePricing(ctx, req.FleetID, req.Provider, req.Profile, at)
	if err != nil {
		return UsageCost{}, err
	}
	if !ok {
		return UsageCost{}, ErrPricingNotFound
	}

	billable := billableComputations(req.Computations, cp.MinimumBillable, cp.BundleSize)
	total := cp.RatePerComputeMinor * int64(billable)

	return UsageCost{
		FleetID:              req.FleetID,
		Provider:             req.Provider,
		Profile:              req.Profile,
		Currency:             cp.Currency,
		BillableComputations: billable,
		RatePerComputeMinor:  cp.RatePerComputeMinor,
		TotalMinor:           total,
	}, nil
}

// RateRepository abstracts pricing persistence.
// Implementation can be Postgres, cached, etc.
type RateRepository interface {
	FindComputePricing(ctx context.Context, fleetID, provider, profile string, at time.Time) (ComputePricing, bool, error)
}

func billableComputations(actual, minimum, bundle int) int {
	if actual < 0 {
		return 0
	}
	if minimum <= 0 {
		minimum = 0
	}
	if bundle <= 0 {
		bundle = 1
	}

	n := actual
	if n < minimum {
		n = minimum
	}

	// round up to nearest bundle
	q := n / bundle
	if n%bundle != 0 {
		q++
	}
	return q * bundle
}
