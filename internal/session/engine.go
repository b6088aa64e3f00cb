package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"navigation-platform/internal/directions"
	"navigation-platform/internal/provider"
	"navigation-platform/internal/reroute"
)

// Engine is the in-process navigation engine for a single session. It raises
// off-route signals to registered observers and dispatches reroute computation
// to exactly one active controller: its own default controller (backed by the
// platform routing provider) or a custom controller installed by a coordinator.
//
// Observer and controller callbacks run on arbitrary goroutines.
type Engine struct {
	mu             sync.Mutex
	observers      []reroute.RerouteObserver
	controller     reroute.RerouteController
	def            *defaultController
	lastRequestURL string
	log            *slog.Logger
}

func NewEngine(prov provider.RoutingProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		def: &defaultController{prov: prov, log: log},
		log: log,
	}
	e.controller = e.def
	return e
}

func (e *Engine) AddRerouteObserver(o reroute.RerouteObserver) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

func (e *Engine) RemoveRerouteObserver(o reroute.RerouteObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, x := range e.observers {
		if x == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *Engine) SetRerouteController(c reroute.RerouteController) {
	e.mu.Lock()
	e.controller = c
	e.mu.Unlock()
}

func (e *Engine) DefaultRerouteController() reroute.RerouteController {
	return e.def
}

// ForceReroute replays the last off-route request, triggering a fresh reroute
// evaluation without an actual deviation.
func (e *Engine) ForceReroute() {
	e.mu.Lock()
	url := e.lastRequestURL
	e.mu.Unlock()
	if url == "" {
		e.log.Warn("force reroute with no prior off-route request")
		return
	}
	e.HandleOffRoute(url)
}

// HandleOffRoute raises the off-route signal. Any observer returning false
// vetoes the reroute; otherwise the active controller computes a route and,
// when the default controller answered, the serialized result is broadcast
// back to observers.
func (e *Engine) HandleOffRoute(requestURL string) {
	e.mu.Lock()
	e.lastRequestURL = requestURL
	observers := make([]reroute.RerouteObserver, len(e.observers))
	copy(observers, e.observers)
	controller := e.controller
	viaDefault := controller == reroute.RerouteController(e.def)
	e.mu.Unlock()

	for _, o := range observers {
		if !o.OnRerouteDetected(requestURL) {
			e.log.Debug("reroute vetoed by observer")
			return
		}
	}
	if controller == nil {
		return
	}

	controller.Reroute(requestURL, func(serializedResponse string, err error) {
		// A custom controller notifies its own delegate; only results computed
		// by the default controller are broadcast through the observer path.
		if !viaDefault {
			return
		}
		if err != nil {
			e.broadcastFailure(err)
			return
		}
		for _, o := range e.snapshotObservers() {
			o.OnRerouteReceived(serializedResponse, requestURL, e.def.origin())
		}
	})
}

// HandleCancel propagates an engine-originated cancellation.
func (e *Engine) HandleCancel() {
	e.mu.Lock()
	controller := e.controller
	e.mu.Unlock()

	if controller != nil {
		controller.Cancel()
	}
	for _, o := range e.snapshotObservers() {
		o.OnRerouteCancelled()
	}
}

// HandleSwitchToAlternative reports a switch to a previously-alternative route.
func (e *Engine) HandleSwitchToAlternative(routeID string) {
	for _, o := range e.snapshotObservers() {
		o.OnSwitchToAlternative(routeID)
	}
}

func (e *Engine) snapshotObservers() []reroute.RerouteObserver {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]reroute.RerouteObserver, len(e.observers))
	copy(out, e.observers)
	return out
}

func (e *Engine) broadcastFailure(err error) {
	kind := reroute.KindProviderError
	if errors.Is(err, directions.ErrDecode) {
		kind = reroute.KindInvalidResponse
	}
	if errors.Is(err, context.Canceled) {
		kind = reroute.KindCancelled
	}
	failure := reroute.Error{Kind: kind, Message: err.Error()}
	for _, o := range e.snapshotObservers() {
		o.OnRerouteFailed(failure)
	}
}

// defaultController is the engine's native reroute path: it resolves requests
// against the platform routing provider. At most one computation is in flight;
// a new request supersedes the previous one.
type defaultController struct {
	mu     sync.Mutex
	prov   provider.RoutingProvider
	cancel context.CancelFunc
	log    *slog.Logger
}

func (d *defaultController) origin() string {
	if d.prov != nil {
		return d.prov.Name()
	}
	return "default"
}

func (d *defaultController) Reroute(requestURL string, callback reroute.RerouteCallback) {
	if d.prov == nil {
		if callback != nil {
			callback("", errors.New("session: no default routing provider"))
		}
		return
	}
	q, creds, err := directions.DecodeRequest(requestURL)
	if err != nil {
		if callback != nil {
			callback("", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		defer cancel()
		result, err := d.prov.ComputeRoute(ctx, q, creds)
		if err != nil {
			if callback != nil {
				callback("", err)
			}
			return
		}
		raw, err := directions.EncodeResponse(result)
		if callback != nil {
			callback(raw, err)
		}
	}()
}

func (d *defaultController) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
