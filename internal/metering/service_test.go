package metering

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestService(rows ...ComputePricing) *Service {
	s := NewService(&MemoryRepo{Compute: rows})
	s.clock = fixedClock
	return s
}

func activeRate(fleetID, provider, profile string, rate int64, bundle, minimum int) ComputePricing {
	return ComputePricing{
		ID:                  "rate-" + provider + profile,
		FleetID:             fleetID,
		Provider:            provider,
		Profile:             profile,
		Currency:            "USD",
		RatePerComputeMinor: rate,
		BundleSize:          bundle,
		MinimumBillable:     minimum,
		EffectiveFrom:       fixedClock().Add(-24 * time.Hour),
		Status:              PricingStatusActive,
	}
}

func TestCalculateUsageCost(t *testing.T) {
	s := newTestService(activeRate("fleet-a", "remote-directions", "", 5, 10, 0))

	cost, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{
		FleetID:      "fleet-a",
		Provider:     "remote-directions",
		Computations: 23,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 23 rounds up to the next bundle of 10.
	if cost.BillableComputations != 30 {
		t.Fatalf("expected 30 billable computations, got %d", cost.BillableComputations)
	}
	if cost.TotalMinor != 150 {
		t.Fatalf("expected total 150, got %d", cost.TotalMinor)
	}
	if cost.Currency != "USD" {
		t.Fatalf("unexpected currency %q", cost.Currency)
	}
}

func TestCalculateUsageCost_MinimumBillable(t *testing.T) {
	s := newTestService(activeRate("fleet-a", "remote-directions", "", 2, 1, 50))

	cost, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{
		FleetID:      "fleet-a",
		Provider:     "remote-directions",
		Computations: 3,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if cost.BillableComputations != 50 || cost.TotalMinor != 100 {
		t.Fatalf("minimum not applied: %+v", cost)
	}
}

func TestCalculateUsageCost_ProfileRatePreferred(t *testing.T) {
	s := newTestService(
		activeRate("fleet-a", "remote-directions", "", 5, 1, 0),
		activeRate("fleet-a", "remote-directions", "driving-traffic", 9, 1, 0),
	)

	cost, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{
		FleetID:      "fleet-a",
		Provider:     "remote-directions",
		Profile:      "driving-traffic",
		Computations: 2,
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if cost.RatePerComputeMinor != 9 {
		t.Fatalf("expected profile-specific rate, got %d", cost.RatePerComputeMinor)
	}
}

func TestCalculateUsageCost_Validation(t *testing.T) {
	s := newTestService()

	if _, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{Provider: "x", Computations: 1}); !errors.Is(err, ErrInvalidUsageReq) {
		t.Fatalf("expected ErrInvalidUsageReq, got %v", err)
	}
	if _, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{FleetID: "f", Provider: "x"}); !errors.Is(err, ErrInvalidUsageReq) {
		t.Fatalf("expected ErrInvalidUsageReq, got %v", err)
	}
	if _, err := s.CalculateUsageCost(context.Background(), UsageCostRequest{FleetID: "f", Provider: "x", Computations: 1}); !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected ErrPricingNotFound, got %v", err)
	}
}

func TestBillableComputations(t *testing.T) {
	cases := []struct {
		actual, minimum, bundle, want int
	}{
		{1, 0, 1, 1},
		{9, 0, 10, 10},
		{10, 0, 10, 10},
		{11, 0, 10, 20},
		{3, 5, 1, 5},
		{7, 0, 0, 7},
		{-1, 0, 1, 0},
	}
	for _, tc := range cases {
		if got := billableComputations(tc.actual, tc.minimum, tc.bundle); got != tc.want {
			t.Fatalf("billableComputations(%d,%d,%d) = %d, want %d", tc.actual, tc.minimum, tc.bundle, got, tc.want)
		}
	}
}
