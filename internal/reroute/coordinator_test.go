package reroute

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"navigation-platform/internal/directions"
)

// stubProvider hands each ComputeRoute call to the test as a pendingCall so
// completions can be released deterministically.
type pendingCall struct {
	query directions.RouteQuery
	reply chan callReply
	ctx   context.Context
}

type callReply struct {
	result directions.RouteResult
	err    error
}

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	requests chan *pendingCall
}

func newStubProvider() *stubProvider {
	return &stubProvider{requests: make(chan *pendingCall, 8)}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *stubProvider) ComputeRoute(ctx context.Context, q directions.RouteQuery, creds directions.Credentials) (directions.RouteResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	call := &pendingCall{query: q, reply: make(chan callReply, 1), ctx: ctx}
	select {
	case p.requests <- call:
	case <-ctx.Done():
		return directions.RouteResult{}, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.result, r.err
	case <-ctx.Done():
		return directions.RouteResult{}, ctx.Err()
	}
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) take(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-p.requests:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for provider call")
		return nil
	}
}

// recordingDelegate funnels notifications into channels the test can wait on.
type recordingDelegate struct {
	detected  chan struct{}
	received  chan directions.RouteResult
	cancelled chan struct{}
	failed    chan Error
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		detected:  make(chan struct{}, 8),
		received:  make(chan directions.RouteResult, 8),
		cancelled: make(chan struct{}, 8),
		failed:    make(chan Error, 8),
	}
}

func (d *recordingDelegate) DidDetectReroute() { d.detected <- struct{}{} }

func (d *recordingDelegate) DidReceiveReroute(r directions.RouteResult, q directions.RouteQuery) {
	d.received <- r
}

func (d *recordingDelegate) DidCancelReroute() { d.cancelled <- struct{}{} }

func (d *recordingDelegate) DidFailToReroute(e Error) { d.failed <- e }

func (d *recordingDelegate) waitReceived(t *testing.T) directions.RouteResult {
	t.Helper()
	select {
	case r := <-d.received:
		return r
	case e := <-d.failed:
		t.Fatalf("expected DidReceiveReroute, got failure %v", e)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DidReceiveReroute")
	}
	return directions.RouteResult{}
}

func (d *recordingDelegate) waitFailed(t *testing.T) Error {
	t.Helper()
	select {
	case e := <-d.failed:
		return e
	case r := <-d.received:
		t.Fatalf("expected DidFailToReroute, got result %q", r.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DidFailToReroute")
	}
	return Error{}
}

func (d *recordingDelegate) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case r := <-d.received:
		t.Fatalf("unexpected DidReceiveReroute: %q", r.ID)
	case e := <-d.failed:
		t.Fatalf("unexpected DidFailToReroute: %v", e)
	case <-d.cancelled:
		t.Fatal("unexpected DidCancelReroute")
	case <-time.After(150 * time.Millisecond):
	}
}

// stubEngine records controller swaps and observer registration.
type stubEngine struct {
	mu         sync.Mutex
	controller RerouteController
	def        *stubController
	observers  []RerouteObserver
	forced     int
}

type stubController struct {
	mu        sync.Mutex
	cancelled int
}

func (s *stubController) Reroute(requestURL string, callback RerouteCallback) {}
func (s *stubController) Cancel() {
	s.mu.Lock()
	s.cancelled++
	s.mu.Unlock()
}

func newStubEngine() *stubEngine {
	e := &stubEngine{def: &stubController{}}
	e.controller = e.def
	return e
}

func (e *stubEngine) AddRerouteObserver(o RerouteObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

func (e *stubEngine) RemoveRerouteObserver(o RerouteObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, x := range e.observers {
		if x == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *stubEngine) SetRerouteController(c RerouteController) {
	e.mu.Lock()
	e.controller = c
	e.mu.Unlock()
}

func (e *stubEngine) DefaultRerouteController() RerouteController { return e.def }
func (e *stubEngine) ForceReroute() {
	e.mu.Lock()
	e.forced++
	e.mu.Unlock()
}

func (e *stubEngine) activeController() RerouteController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controller
}

func requestURL(token string, destLon float64) string {
	return fmt.Sprintf("https://api.example.com/directions/v5/nav/driving-traffic/"+
		"13.418946,52.500055;%.6f,52.499893?access_token=%s&alternatives=true", destLon, token)
}

func okResult(id string, q directions.RouteQuery) directions.RouteResult {
	return directions.RouteResult{
		ID:     id,
		Routes: []directions.Route{{DistanceMeters: 100, DurationSeconds: 60}},
		Query:  q,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *stubEngine, *recordingDelegate, *stubProvider) {
	t.Helper()
	engine := newStubEngine()
	delegate := newRecordingDelegate()
	prov := newStubProvider()
	c := NewCoordinator(engine, delegate, Options{}, nil)
	c.SetProvider(prov)
	return c, engine, delegate, prov
}

func TestReroute_Success(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	var cbMu sync.Mutex
	var cbResp string
	done := make(chan struct{})
	c.Reroute(requestURL("tok", 13.426012), func(resp string, err error) {
		cbMu.Lock()
		cbResp = resp
		cbMu.Unlock()
		close(done)
	})

	call := prov.take(t)
	call.reply <- callReply{result: okResult("r1", call.query)}

	got := delegate.waitReceived(t)
	if got.ID != "r1" {
		t.Fatalf("unexpected result id %q", got.ID)
	}
	<-done
	cbMu.Lock()
	defer cbMu.Unlock()
	if cbResp == "" {
		t.Fatal("engine callback did not receive a serialized response")
	}
}

func TestReroute_EquivalentQueryServedFromCache(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok-a", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{result: okResult("r1", call.query)}
	delegate.waitReceived(t)

	// Same routing parameters under a different token: no second provider call.
	c.Reroute(requestURL("tok-b", 13.426012), nil)
	got := delegate.waitReceived(t)
	if got.ID != "r1" {
		t.Fatalf("expected cached result r1, got %q", got.ID)
	}
	if n := prov.callCount(); n != 1 {
		t.Fatalf("expected 1 provider call, got %d", n)
	}
}

func TestReroute_DetectionClearsAcceptanceCache(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	prov.take(t).reply <- callReply{result: okResult("r1", directions.RouteQuery{})}
	delegate.waitReceived(t)

	if cont := c.OnRerouteDetected(requestURL("tok", 13.426012)); !cont {
		t.Fatal("expected detection to proceed while proactive")
	}
	<-delegate.detected

	// Same query again: the fresh detection cleared the cache, so the
	// provider must be called a second time.
	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{result: okResult("r2", call.query)}
	if got := delegate.waitReceived(t); got.ID != "r2" {
		t.Fatalf("expected fresh result r2, got %q", got.ID)
	}
	if n := prov.callCount(); n != 2 {
		t.Fatalf("expected 2 provider calls, got %d", n)
	}
}

func TestReroute_DisableProactiveSuppressesPendingCompletion(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)

	c.SetProactive(false)
	call.reply <- callReply{result: okResult("late", call.query)}

	delegate.assertQuiet(t)
}

func TestReroute_CancelSuppressesStaleCompletion(t *testing.T) {
	c, engine, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)

	c.Cancel()
	call.reply <- callReply{result: okResult("late", call.query)}

	delegate.assertQuiet(t)
	engine.def.mu.Lock()
	cancelled := engine.def.cancelled
	engine.def.mu.Unlock()
	if cancelled != 1 {
		t.Fatalf("expected native cancellation path to fire once, got %d", cancelled)
	}
}

func TestReroute_CancelledFlagGatesUntilNextDetection(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Cancel()
	c.Reroute(requestURL("tok", 13.426012), nil)
	if e := delegate.waitFailed(t); e.Kind != KindCancelled {
		t.Fatalf("expected cancelled failure, got %v", e)
	}

	// Detection resets the flag.
	c.OnRerouteDetected(requestURL("tok", 13.426012))
	<-delegate.detected
	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{result: okResult("r1", call.query)}
	delegate.waitReceived(t)
}

func TestReroute_SecondDetectionSupersedesFirstRequest(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	first := prov.take(t)

	c.Reroute(requestURL("tok", 13.999999), nil)
	second := prov.take(t)

	// Even if the first completion still fires, it must be dropped.
	first.reply <- callReply{result: okResult("first", first.query)}
	second.reply <- callReply{result: okResult("second", second.query)}

	if got := delegate.waitReceived(t); got.ID != "second" {
		t.Fatalf("expected superseding result, got %q", got.ID)
	}
	delegate.assertQuiet(t)

	select {
	case <-first.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected first request context to be cancelled")
	}
}

func TestReroute_DecodeFailure(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute("https://api.example.com/not-directions", nil)
	if e := delegate.waitFailed(t); e.Kind != KindInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", e)
	}
	if n := prov.callCount(); n != 0 {
		t.Fatalf("expected no provider call, got %d", n)
	}
}

func TestReroute_NoProvider(t *testing.T) {
	engine := newStubEngine()
	delegate := newRecordingDelegate()
	c := NewCoordinator(engine, delegate, Options{}, nil)

	c.Reroute(requestURL("tok", 13.426012), nil)
	if e := delegate.waitFailed(t); e.Kind != KindNoProvider {
		t.Fatalf("expected no_provider, got %v", e)
	}
}

func TestReroute_EmptyResultIDFailsAndCacheStaysEmpty(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{result: directions.RouteResult{Routes: []directions.Route{{}}}}

	if e := delegate.waitFailed(t); e.Kind != KindProviderEmptyResult {
		t.Fatalf("expected provider_empty_result, got %v", e)
	}

	// Cache stayed empty: an equivalent resubmission must hit the provider.
	c.Reroute(requestURL("tok", 13.426012), nil)
	call = prov.take(t)
	call.reply <- callReply{result: okResult("r1", call.query)}
	delegate.waitReceived(t)
	if n := prov.callCount(); n != 2 {
		t.Fatalf("expected 2 provider calls, got %d", n)
	}
}

func TestReroute_ProviderErrorPreservesMessage(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{err: fmt.Errorf("upstream router melted")}

	e := delegate.waitFailed(t)
	if e.Kind != KindProviderError {
		t.Fatalf("expected provider_error, got %v", e)
	}
	if e.Message != "upstream router melted" {
		t.Fatalf("provider message not preserved: %q", e.Message)
	}
}

func TestResetToDefaults(t *testing.T) {
	c, engine, _, prov := newTestCoordinator(t)
	_ = prov

	c.SetProactive(false)
	c.SetAvoidManeuverSeconds(20)
	c.Cancel()

	if engine.activeController() != RerouteController(c) {
		t.Fatal("expected coordinator installed as controller while provider set")
	}

	c.ResetToDefaults()

	if !c.Proactive() {
		t.Fatal("expected proactive restored")
	}
	if got := c.AvoidManeuverSeconds(); got != DefaultAvoidManeuverSeconds {
		t.Fatalf("expected default avoidance radius, got %v", got)
	}
	if c.Provider() != nil {
		t.Fatal("expected custom provider cleared")
	}
	if engine.activeController() != RerouteController(engine.def) {
		t.Fatal("expected default controller restored")
	}

	// Cancelled flag cleared: a reroute attempt fails with no_provider, not cancelled.
	delegate := newRecordingDelegate()
	c2, _, _, _ := newTestCoordinator(t)
	c2.Cancel()
	c2.ResetToDefaults()
	c2.delegate = delegate
	c2.Reroute(requestURL("tok", 13.426012), nil)
	if e := delegate.waitFailed(t); e.Kind != KindNoProvider {
		t.Fatalf("expected no_provider after reset, got %v", e)
	}
}

func TestSetProvider_SwapsController(t *testing.T) {
	engine := newStubEngine()
	c := NewCoordinator(engine, nil, Options{}, nil)

	if engine.activeController() != RerouteController(engine.def) {
		t.Fatal("expected default controller before a provider is installed")
	}

	c.SetProvider(newStubProvider())
	if engine.activeController() != RerouteController(c) {
		t.Fatal("expected coordinator installed as controller")
	}

	c.SetProvider(nil)
	if engine.activeController() != RerouteController(engine.def) {
		t.Fatal("expected default controller restored")
	}
}

func TestDetach_UnregistersAndRestoresDefaultController(t *testing.T) {
	engine := newStubEngine()
	c := NewCoordinator(engine, nil, Options{}, nil)
	c.SetProvider(newStubProvider())

	c.Detach()

	engine.mu.Lock()
	observers := len(engine.observers)
	engine.mu.Unlock()
	if observers != 0 {
		t.Fatalf("expected observer removed, %d left", observers)
	}
	if engine.activeController() != RerouteController(engine.def) {
		t.Fatal("expected default controller restored on detach")
	}
}

func TestOnRerouteDetected_DisabledProactiveStopsEngine(t *testing.T) {
	c, _, delegate, _ := newTestCoordinator(t)
	c.SetProactive(false)

	if cont := c.OnRerouteDetected(requestURL("tok", 13.426012)); cont {
		t.Fatal("expected detection to be suppressed while proactive disabled")
	}
	select {
	case <-delegate.detected:
		t.Fatal("unexpected DidDetectReroute while proactive disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnRerouteReceived_NotifiesDelegate(t *testing.T) {
	c, _, delegate, _ := newTestCoordinator(t)

	resp := `{"code":"Ok","uuid":"native-1","routes":[{"distance":10,"duration":5}]}`
	c.OnRerouteReceived(resp, requestURL("tok", 13.426012), "onboard")

	if got := delegate.waitReceived(t); got.ID != "native-1" {
		t.Fatalf("unexpected result id %q", got.ID)
	}
}

func TestOnRerouteReceived_BadResponse(t *testing.T) {
	c, _, delegate, _ := newTestCoordinator(t)

	c.OnRerouteReceived("{not json", requestURL("tok", 13.426012), "onboard")
	if e := delegate.waitFailed(t); e.Kind != KindInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", e)
	}
}

func TestOnRerouteCancelled_NotifiesOnlyWhileProactive(t *testing.T) {
	c, _, delegate, _ := newTestCoordinator(t)

	c.OnRerouteCancelled()
	select {
	case <-delegate.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected DidCancelReroute")
	}

	c.SetProactive(false)
	c.OnRerouteCancelled()
	select {
	case <-delegate.cancelled:
		t.Fatal("unexpected DidCancelReroute while proactive disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnSwitchToAlternative_IsNoOp(t *testing.T) {
	c, _, delegate, prov := newTestCoordinator(t)

	c.Reroute(requestURL("tok", 13.426012), nil)
	call := prov.take(t)
	call.reply <- callReply{result: okResult("r1", call.query)}
	delegate.waitReceived(t)

	c.OnSwitchToAlternative("alt-route")

	// Cache must survive: equivalent reroute still served without a provider call.
	c.Reroute(requestURL("tok", 13.426012), nil)
	if got := delegate.waitReceived(t); got.ID != "r1" {
		t.Fatalf("expected cached result after no-op hook, got %q", got.ID)
	}
	if n := prov.callCount(); n != 1 {
		t.Fatalf("expected 1 provider call, got %d", n)
	}
}
