package reroute

import "navigation-platform/internal/directions"

// RerouteCallback delivers a serialized route response (or a typed failure)
// back to the engine that requested the reroute.
type RerouteCallback func(serializedResponse string, err error)

// RerouteController is the interface the engine invokes to compute reroutes.
// Exactly one controller is active per engine at any time: the engine's own
// default controller, or the coordinator when a custom provider is installed.
type RerouteController interface {
	// Reroute is async: it returns immediately and delivers the outcome via
	// callback from an arbitrary goroutine.
	Reroute(requestURL string, callback RerouteCallback)
	Cancel()
}

// RerouteObserver receives reroute lifecycle events pushed by the engine.
// All methods may be called from arbitrary goroutines.
type RerouteObserver interface {
	// OnRerouteDetected reports an off-route signal carrying the serialized
	// request the engine would issue. Returning false tells the engine not to
	// proceed with a reroute.
	OnRerouteDetected(requestURL string) bool

	// OnRerouteReceived reports a route computed by the engine's default
	// controller, in serialized form, together with the request that produced
	// it and the origin label of the router that answered.
	OnRerouteReceived(serializedResponse, serializedRequest, origin string)

	// OnRerouteCancelled reports an engine-originated cancellation, distinct
	// from a local Cancel call.
	OnRerouteCancelled()

	OnRerouteFailed(failure Error)

	// OnSwitchToAlternative reports that the session switched to a
	// previously-alternative route. Reserved hook; implementations must not
	// alter reroute state.
	OnSwitchToAlternative(routeID string)
}

// Delegate is notified of reroute outcomes. Calls originate from whichever
// goroutine the provider callback executed on; marshalling onto a particular
// execution context is the delegate's responsibility.
type Delegate interface {
	DidDetectReroute()
	DidReceiveReroute(result directions.RouteResult, query directions.RouteQuery)
	DidCancelReroute()
	DidFailToReroute(failure Error)
}

// Engine is the coordinator's view of the navigation engine it attaches to.
type Engine interface {
	AddRerouteObserver(RerouteObserver)
	RemoveRerouteObserver(RerouteObserver)

	// SetRerouteController swaps the active controller. The engine sees
	// exactly one active controller at any time.
	SetRerouteController(RerouteController)
	DefaultRerouteController() RerouteController

	// ForceReroute triggers a reroute evaluation as if the session had gone
	// off route.
	ForceReroute()
}

// NopDelegate discards all notifications. Useful for sessions with no
// presentation layer attached.
type NopDelegate struct{}

func (NopDelegate) DidDetectReroute()                                               {}
func (NopDelegate) DidReceiveReroute(directions.RouteResult, directions.RouteQuery) {}
func (NopDelegate) DidCancelReroute()                                               {}
func (NopDelegate) DidFailToReroute(Error)                                          {}
