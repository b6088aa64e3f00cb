// Package reroute owns the reroute negotiation lifecycle: it mediates between
// the engine's off-route detection signal and a routing provider that computes
// a replacement route, deduplicating redundant computations and enforcing
// strict cancellation semantics so stale results never leak to the delegate.
package reroute

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"navigation-platform/internal/directions"
	"navigation-platform/internal/provider"
)

// pendingRequest is the handle to the single in-flight provider call.
type pendingRequest struct {
	generation uint64
	cancel     context.CancelFunc
}

// recentAcceptance caches the one most-recently-accepted route so a duplicate
// delivery of the same request is answered without recomputation.
type recentAcceptance struct {
	query  directions.RouteQuery
	result directions.RouteResult
	raw    string
}

// Coordinator implements both RerouteObserver (engine pushes events in) and
// RerouteController (engine asks for reroutes when a custom provider is
// installed).
//
// Concurrency: a single mutex guards all coordinator-owned state. The lock is
// held only for the duration of a state transition, never across the provider
// call, and never while invoking the delegate or an engine callback. Late
// provider callbacks are suppressed by a generation counter.
type Coordinator struct {
	mu sync.Mutex

	engine   Engine
	delegate Delegate
	prov     provider.RoutingProvider
	log      *slog.Logger

	proactive            bool
	avoidManeuverSeconds float64
	cancelled            bool

	generation uint64
	pending    *pendingRequest
	recent     *recentAcceptance

	defaults Options
}

// NewCoordinator builds a coordinator attached to engine and registers it as a
// reroute observer. The engine keeps its default controller until a custom
// provider is installed via SetProvider. Call Detach before discarding the
// coordinator.
func NewCoordinator(engine Engine, delegate Delegate, opts Options, log *slog.Logger) *Coordinator {
	opts = opts.withDefaults()
	if delegate == nil {
		delegate = NopDelegate{}
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		engine:               engine,
		delegate:             delegate,
		log:                  log,
		proactive:            true,
		avoidManeuverSeconds: opts.AvoidManeuverSeconds,
		defaults:             opts,
	}
	if engine != nil {
		engine.AddRerouteObserver(c)
	}
	return c
}

// Reroute implements RerouteController. It decodes the request, answers from
// the acceptance cache when the query is equivalent to the last accepted one,
// and otherwise issues a provider call that supersedes any prior pending
// request.
func (c *Coordinator) Reroute(requestURL string, callback RerouteCallback) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindCancelled, Message: "reroute cancelled"})
		return
	}
	if !c.proactive {
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindCancelled, Message: "proactive rerouting disabled"})
		return
	}
	if c.prov == nil {
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindNoProvider, Message: "no routing provider configured"})
		return
	}

	q, creds, err := directions.DecodeRequest(requestURL)
	if err != nil {
		c.recent = nil
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindInvalidResponse, Message: err.Error()})
		return
	}
	if q.AvoidManeuverSeconds == 0 {
		q.AvoidManeuverSeconds = c.avoidManeuverSeconds
	}

	if c.recent != nil && c.recent.query.Equivalent(q) {
		result, raw := c.recent.result, c.recent.raw
		c.mu.Unlock()
		c.log.Debug("reroute answered from acceptance cache", "result_id", result.ID)
		c.delegate.DidReceiveReroute(result, q)
		if callback != nil {
			callback(raw, nil)
		}
		return
	}

	// Starting a new request supersedes any prior pending one.
	if c.pending != nil {
		c.pending.cancel()
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.pending = &pendingRequest{generation: gen, cancel: cancel}
	prov := c.prov
	c.mu.Unlock()

	go func() {
		defer cancel()
		result, err := prov.ComputeRoute(ctx, q, creds)
		c.deliver(gen, q, result, err, callback)
	}()
}

// deliver applies a provider completion. A callback whose generation no longer
// matches the pending request, or that arrives after cancellation, is a no-op.
func (c *Coordinator) deliver(gen uint64, q directions.RouteQuery, result directions.RouteResult, err error, callback RerouteCallback) {
	c.mu.Lock()
	if c.cancelled || c.pending == nil || c.pending.generation != gen {
		c.mu.Unlock()
		c.log.Debug("dropping stale reroute callback", "generation", gen)
		return
	}
	c.pending = nil

	if err != nil {
		c.recent = nil
		c.mu.Unlock()
		kind := KindProviderError
		if errors.Is(err, directions.ErrDecode) {
			kind = KindInvalidResponse
		}
		c.fail(callback, Error{Kind: kind, Message: err.Error()})
		return
	}
	if result.ID == "" {
		c.recent = nil
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindProviderEmptyResult, Message: "provider returned an unidentifiable result"})
		return
	}

	raw, encErr := directions.EncodeResponse(result)
	if encErr != nil {
		c.recent = nil
		c.mu.Unlock()
		c.fail(callback, Error{Kind: KindInvalidResponse, Message: encErr.Error()})
		return
	}
	c.recent = &recentAcceptance{query: q, result: result, raw: raw}
	c.mu.Unlock()

	c.log.Info("reroute succeeded", "result_id", result.ID, "routes", len(result.Routes))
	c.delegate.DidReceiveReroute(result, q)
	if callback != nil {
		callback(raw, nil)
	}
}

// Cancel implements RerouteController. The cancelled flag gates all subsequent
// reroute attempts until the next off-route detection resets it.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	var def RerouteController
	if c.engine != nil {
		def = c.engine.DefaultRerouteController()
	}
	c.mu.Unlock()

	// Propagate to the engine's native cancellation path as well.
	if def != nil {
		def.Cancel()
	}
}

// OnRerouteDetected implements RerouteObserver. A fresh detection always
// clears the acceptance cache and the cancelled flag; no stale accept survives
// a new detection cycle.
func (c *Coordinator) OnRerouteDetected(requestURL string) bool {
	c.mu.Lock()
	c.recent = nil
	c.cancelled = false
	proactive := c.proactive
	c.mu.Unlock()

	if !proactive {
		return false
	}
	c.delegate.DidDetectReroute()
	return true
}

// OnRerouteReceived implements RerouteObserver: a route computed by the
// engine's default controller arrives in serialized form.
func (c *Coordinator) OnRerouteReceived(serializedResponse, serializedRequest, origin string) {
	q, creds, err := directions.DecodeRequest(serializedRequest)
	if err != nil {
		c.failFromEngine(Error{Kind: KindInvalidResponse, Message: err.Error()})
		return
	}
	result, err := directions.DecodeResponse(serializedResponse, q, creds)
	if err != nil {
		c.failFromEngine(Error{Kind: KindInvalidResponse, Message: err.Error()})
		return
	}
	if result.ID == "" {
		c.failFromEngine(Error{Kind: KindProviderEmptyResult, Message: "engine delivered an unidentifiable result"})
		return
	}

	c.mu.Lock()
	c.recent = &recentAcceptance{query: q, result: result, raw: serializedResponse}
	c.mu.Unlock()

	c.log.Info("reroute received from engine", "result_id", result.ID, "origin", origin)
	c.delegate.DidReceiveReroute(result, q)
}

// OnRerouteCancelled implements RerouteObserver.
func (c *Coordinator) OnRerouteCancelled() {
	c.mu.Lock()
	c.recent = nil
	proactive := c.proactive
	c.mu.Unlock()

	if proactive {
		c.delegate.DidCancelReroute()
	}
}

// OnRerouteFailed implements RerouteObserver.
func (c *Coordinator) OnRerouteFailed(failure Error) {
	c.failFromEngine(failure)
}

// OnSwitchToAlternative implements RerouteObserver. Reserved for continuous
// alternatives; deliberately leaves all reroute state untouched.
func (c *Coordinator) OnSwitchToAlternative(routeID string) {}

func (c *Coordinator) failFromEngine(failure Error) {
	c.mu.Lock()
	c.recent = nil
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.mu.Unlock()
	c.fail(nil, failure)
}

func (c *Coordinator) fail(callback RerouteCallback, failure Error) {
	if failure.Kind != KindCancelled {
		c.log.Warn("reroute failed", "kind", string(failure.Kind), "error", failure.Message)
	}
	c.delegate.DidFailToReroute(failure)
	if callback != nil {
		callback("", failure)
	}
}

// SetProactive toggles proactive rerouting. Disabling it while a request is in
// flight cancels that request; its completion produces no notification.
func (c *Coordinator) SetProactive(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proactive && !enabled && c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.proactive = enabled
}

func (c *Coordinator) Proactive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proactive
}

// SetAvoidManeuverSeconds updates the maneuver-avoidance radius applied to
// queries that do not carry one. Non-positive values are ignored.
func (c *Coordinator) SetAvoidManeuverSeconds(seconds float64) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avoidManeuverSeconds = seconds
}

func (c *Coordinator) AvoidManeuverSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avoidManeuverSeconds
}

// SetProvider installs or removes the custom routing provider and swaps the
// engine's active controller accordingly: the coordinator itself when a
// provider is present, the engine's default controller otherwise. The swap is
// performed under the coordinator lock so the engine always observes exactly
// one active controller.
func (c *Coordinator) SetProvider(p provider.RoutingProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prov = p
	if c.engine == nil {
		return
	}
	if p != nil {
		c.engine.SetRerouteController(c)
	} else {
		c.engine.SetRerouteController(c.engine.DefaultRerouteController())
	}
}

// Provider returns the installed custom provider, or nil in default mode.
func (c *Coordinator) Provider() provider.RoutingProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prov
}

// ForceReroute asks the engine to run a reroute evaluation immediately.
func (c *Coordinator) ForceReroute() {
	c.mu.Lock()
	eng := c.engine
	c.mu.Unlock()
	if eng != nil {
		eng.ForceReroute()
	}
}

// ResetToDefaults restores proactive rerouting, the default avoidance radius,
// removes any custom provider, and clears cancellation and cache state.
func (c *Coordinator) ResetToDefaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proactive = true
	c.avoidManeuverSeconds = c.defaults.AvoidManeuverSeconds
	c.cancelled = false
	c.recent = nil
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.prov = nil
	if c.engine != nil {
		c.engine.SetRerouteController(c.engine.DefaultRerouteController())
	}
}

// Detach unregisters the coordinator from the engine and hands the controller
// role back to the engine's default implementation. The coordinator must not
// be used after Detach.
func (c *Coordinator) Detach() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	eng := c.engine
	c.engine = nil
	c.mu.Unlock()

	if eng != nil {
		eng.RemoveRerouteObserver(c)
		eng.SetRerouteController(eng.DefaultRerouteController())
	}
}
