package provider

import (
	"context"

	"navigation-platform/internal/directions"
)

// RoutingProvider computes routes for reroute requests.
//
// Contract:
// - ComputeRoute is called at most once per reroute attempt.
// - It must honor ctx cancellation; a cancelled attempt should return ctx.Err().
// - Implementations may be called from multiple sessions concurrently.
type RoutingProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// ComputeRoute resolves the query into a route set. Returning a nil error
	// with an empty result ID is allowed; the caller decides whether an
	// unidentifiable result is acceptable.
	ComputeRoute(ctx context.Context, q directions.RouteQuery, creds directions.Credentials) (directions.RouteResult, error)
}
