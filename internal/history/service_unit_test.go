package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Validation paths never touch the database, so a nil handle is fine here.
func newValidationService() *Service {
	s := NewService(nil)
	s.clock = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestRecord_Validation(t *testing.T) {
	s := newValidationService()
	ctx := context.Background()

	cases := []struct {
		name    string
		fleetID string
		req     RecordRequest
	}{
		{"missing fleet", "", RecordRequest{SessionID: "s1", Outcome: OutcomeDetected, IdempotencyKey: "k"}},
		{"missing session", "f1", RecordRequest{Outcome: OutcomeDetected, IdempotencyKey: "k"}},
		{"missing idempotency key", "f1", RecordRequest{SessionID: "s1", Outcome: OutcomeDetected}},
		{"bad outcome", "f1", RecordRequest{SessionID: "s1", Outcome: "exploded", IdempotencyKey: "k"}},
		{"received without route id", "f1", RecordRequest{SessionID: "s1", Outcome: OutcomeReceived, IdempotencyKey: "k"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := s.Record(ctx, tc.fleetID, tc.req); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestList_Validation(t *testing.T) {
	s := newValidationService()
	if _, err := s.List(context.Background(), "", "s1", 10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := s.List(context.Background(), "f1", "", 10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestStats_Validation(t *testing.T) {
	s := newValidationService()
	if _, err := s.Stats(context.Background(), "", "s1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestValidOutcome(t *testing.T) {
	for _, o := range []string{OutcomeDetected, OutcomeReceived, OutcomeFailed, OutcomeCancelled} {
		if !validOutcome(o) {
			t.Fatalf("expected %q to be valid", o)
		}
	}
	if validOutcome("") || validOutcome("detected ") {
		t.Fatal("expected invalid outcomes to be rejected")
	}
}
