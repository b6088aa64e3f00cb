package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"navigation-platform/internal/directions"
	"navigation-platform/internal/provider"
	"navigation-platform/internal/reroute"
	"navigation-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrSessionEnded    = errors.New("session: already ended")
	ErrStormLimited    = errors.New("session: reroute storm limit reached")
	ErrUnknownProvider = errors.New("session: unknown provider mode")
)

// EventRecorder receives session-level reroute events. Implementations must
// tolerate concurrent calls.
type EventRecorder interface {
	RecordReroute(ctx context.Context, ev RerouteEvent) error
}

// ProviderModeDefault selects the engine's native controller.
const ProviderModeDefault = "default"

// RerouteConfig is the per-session reroute configuration surface.
type RerouteConfig struct {
	Proactive            bool    `json:"proactive"`
	AvoidManeuverSeconds float64 `json:"avoid_maneuver_seconds"`
	ProviderMode         string  `json:"provider_mode"`
}

// ConfigUpdate applies only the fields that are set. Reset restores defaults
// first, then applies the remaining fields.
type ConfigUpdate struct {
	Proactive            *bool    `json:"proactive,omitempty"`
	AvoidManeuverSeconds *float64 `json:"avoid_maneuver_seconds,omitempty"`
	ProviderMode         *string  `json:"provider_mode,omitempty"`
	Reset                bool     `json:"reset,omitempty"`
}

type managedSession struct {
	session     Session
	engine      *Engine
	coordinator *reroute.Coordinator
	config      RerouteConfig
	slotHeld    bool
}

// Manager owns the live sessions of the process: one engine plus one reroute
// coordinator per session. It enforces fleet isolation on every lookup and
// caps reroute storms per session through redis.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managedSession

	defaultProvider provider.RoutingProvider
	customProviders map[string]provider.RoutingProvider

	rdb         *redis.Client
	stormLimit  int
	stormWindow time.Duration

	recorders []EventRecorder
	opts      reroute.Options
	log       *slog.Logger
	clock     func() time.Time
}

type ManagerConfig struct {
	DefaultProvider provider.RoutingProvider
	CustomProviders map[string]provider.RoutingProvider

	// Redis enables the per-session reroute storm cap when set.
	Redis       *redis.Client
	StormLimit  int
	StormWindow time.Duration

	RerouteOptions reroute.Options
}

func NewManager(cfg ManagerConfig, log *slog.Logger, recorders ...EventRecorder) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions:        map[string]*managedSession{},
		defaultProvider: cfg.DefaultProvider,
		customProviders: cfg.CustomProviders,
		rdb:             cfg.Redis,
		stormLimit:      cfg.StormLimit,
		stormWindow:     cfg.StormWindow,
		recorders:       recorders,
		opts:            cfg.RerouteOptions,
		log:             log.With("component", "session_manager"),
		clock:           time.Now,
	}
}

// Start creates a session with its engine and coordinator attached.
func (m *Manager) Start(ctx context.Context, fleetID, driverID, profile string) (Session, error) {
	if fleetID == "" {
		return Session{}, errors.New("session: fleet_id required")
	}
	if driverID == "" {
		return Session{}, errors.New("session: driver_id required")
	}
	if profile == "" {
		profile = "driving-traffic"
	}

	now := m.clock().UTC()
	s := Session{
		SessionID: uuid.NewString(),
		FleetID:   fleetID,
		DriverID:  driverID,
		Profile:   profile,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	engine := NewEngine(m.defaultProvider, m.log)
	delegate := &sessionDelegate{manager: m, sessionID: s.SessionID}
	coordinator := reroute.NewCoordinator(engine, delegate, m.opts, m.log.With("session_id", s.SessionID))

	m.mu.Lock()
	m.sessions[s.SessionID] = &managedSession{
		session:     s,
		engine:      engine,
		coordinator: coordinator,
		config: RerouteConfig{
			Proactive:            true,
			AvoidManeuverSeconds: coordinator.AvoidManeuverSeconds(),
			ProviderMode:         ProviderModeDefault,
		},
	}
	m.mu.Unlock()

	m.log.InfoContext(ctx, "session started", "session_id", s.SessionID, "fleet_id", fleetID)
	return s, nil
}

// Get returns a session, enforcing fleet isolation.
func (m *Manager) Get(ctx context.Context, fleetID, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		return Session{}, err
	}
	return ms.session, nil
}

// List returns the fleet's live sessions, newest first.
func (m *Manager) List(ctx context.Context, fleetID string) []Session {
	m.mu.Lock()
	out := make([]Session, 0)
	for _, ms := range m.sessions {
		if ms.session.FleetID == fleetID {
			out = append(out, ms.session)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ReportOffRoute feeds an off-route signal with its serialized reroute request
// into the session's engine. Rejected with ErrStormLimited when the session
// exceeds its concurrent reroute cap.
func (m *Manager) ReportOffRoute(ctx context.Context, fleetID, sessionID, requestURL string) error {
	m.mu.Lock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	engine := ms.engine

	if m.rdb != nil {
		ok, aerr := utils.AcquireRerouteSlot(ctx, m.rdb, stormKey(sessionID), m.stormLimit, m.stormWindow)
		if aerr != nil {
			m.mu.Unlock()
			return aerr
		}
		if !ok {
			m.mu.Unlock()
			return ErrStormLimited
		}
		ms.slotHeld = true
	}
	ms.session.Status = StatusOffRoute
	ms.session.UpdatedAt = m.clock().UTC()
	m.mu.Unlock()

	// The detected event itself is recorded via the coordinator's delegate.
	engine.HandleOffRoute(requestURL)
	return nil
}

// ForceReroute triggers a reroute evaluation without an off-route signal.
func (m *Manager) ForceReroute(ctx context.Context, fleetID, sessionID string) error {
	m.mu.Lock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	coordinator := ms.coordinator
	m.mu.Unlock()

	coordinator.ForceReroute()
	return nil
}

// CancelReroute cancels any in-flight reroute for the session.
func (m *Manager) CancelReroute(ctx context.Context, fleetID, sessionID string) error {
	m.mu.Lock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	engine := ms.engine
	m.mu.Unlock()

	engine.HandleCancel()
	return nil
}

// Config returns the session's reroute configuration.
func (m *Manager) Config(ctx context.Context, fleetID, sessionID string) (RerouteConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		return RerouteConfig{}, err
	}
	return ms.config, nil
}

// UpdateConfig applies a partial reroute configuration update.
func (m *Manager) UpdateConfig(ctx context.Context, fleetID, sessionID string, upd ConfigUpdate) (RerouteConfig, error) {
	m.mu.Lock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		m.mu.Unlock()
		return RerouteConfig{}, err
	}
	coordinator := ms.coordinator

	if upd.ProviderMode != nil && *upd.ProviderMode != ProviderModeDefault {
		if _, ok := m.customProviders[*upd.ProviderMode]; !ok {
			m.mu.Unlock()
			return RerouteConfig{}, ErrUnknownProvider
		}
	}
	m.mu.Unlock()

	// Coordinator has its own lock; apply outside the manager lock.
	if upd.Reset {
		coordinator.ResetToDefaults()
	}
	if upd.Proactive != nil {
		coordinator.SetProactive(*upd.Proactive)
	}
	if upd.AvoidManeuverSeconds != nil {
		coordinator.SetAvoidManeuverSeconds(*upd.AvoidManeuverSeconds)
	}
	if upd.ProviderMode != nil {
		if *upd.ProviderMode == ProviderModeDefault {
			coordinator.SetProvider(nil)
		} else {
			coordinator.SetProvider(m.customProviders[*upd.ProviderMode])
		}
	}

	cfg := RerouteConfig{
		Proactive:            coordinator.Proactive(),
		AvoidManeuverSeconds: coordinator.AvoidManeuverSeconds(),
		ProviderMode:         ProviderModeDefault,
	}
	if p := coordinator.Provider(); p != nil {
		cfg.ProviderMode = p.Name()
	}

	m.mu.Lock()
	if ms2, ok := m.sessions[sessionID]; ok {
		ms2.config = cfg
		ms2.session.UpdatedAt = m.clock().UTC()
	}
	m.mu.Unlock()
	return cfg, nil
}

// End tears the session down: the coordinator detaches from the engine and the
// session leaves the live set.
func (m *Manager) End(ctx context.Context, fleetID, sessionID string, completed bool) (Session, error) {
	m.mu.Lock()
	ms, err := m.lookupLocked(fleetID, sessionID)
	if err != nil {
		m.mu.Unlock()
		return Session{}, err
	}
	delete(m.sessions, sessionID)
	ms.session.Status = StatusCancelled
	if completed {
		ms.session.Status = StatusCompleted
	}
	ms.session.UpdatedAt = m.clock().UTC()
	out := ms.session
	coordinator := ms.coordinator
	m.mu.Unlock()

	coordinator.Detach()
	m.log.InfoContext(ctx, "session ended", "session_id", sessionID, "status", string(out.Status))
	return out, nil
}

func (m *Manager) lookupLocked(fleetID, sessionID string) (*managedSession, error) {
	ms, ok := m.sessions[sessionID]
	if !ok || ms.session.FleetID != fleetID {
		return nil, ErrNotFound
	}
	return ms, nil
}

func stormKey(sessionID string) string { return "reroute:storm:" + sessionID }

// applyOutcome folds a reroute outcome into session state and fans the event
// out to recorders. Called from provider callback goroutines.
func (m *Manager) applyOutcome(sessionID, outcome, routeID, errKind, errMessage string) {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := m.clock().UTC()
	switch outcome {
	case OutcomeDetected:
		ms.session.Status = StatusRerouting
	case OutcomeReceived:
		ms.session.Status = StatusActive
		ms.session.ActiveRouteID = routeID
		ms.session.RerouteCount++
	case OutcomeFailed:
		ms.session.Status = StatusOffRoute
	case OutcomeCancelled:
		ms.session.Status = StatusActive
	}
	ms.session.UpdatedAt = now
	releaseSlot := ms.slotHeld && outcome != OutcomeDetected
	if releaseSlot {
		ms.slotHeld = false
	}
	ev := RerouteEvent{
		FleetID:      ms.session.FleetID,
		SessionID:    sessionID,
		DriverID:     ms.session.DriverID,
		Profile:      ms.session.Profile,
		Outcome:      outcome,
		RouteID:      routeID,
		ErrorKind:    errKind,
		ErrorMessage: errMessage,
		OccurredAt:   now,
	}
	m.mu.Unlock()

	if releaseSlot && m.rdb != nil {
		if err := utils.ReleaseRerouteSlot(context.Background(), m.rdb, stormKey(sessionID)); err != nil {
			m.log.Warn("storm slot release failed", "session_id", sessionID, "error", err)
		}
	}
	for _, r := range m.recorders {
		if err := r.RecordReroute(context.Background(), ev); err != nil {
			m.log.Warn("reroute event record failed", "session_id", sessionID, "error", err)
		}
	}
}

// sessionDelegate bridges coordinator notifications into session state.
type sessionDelegate struct {
	manager   *Manager
	sessionID string
}

func (d *sessionDelegate) DidDetectReroute() {
	d.manager.applyOutcome(d.sessionID, OutcomeDetected, "", "", "")
}

func (d *sessionDelegate) DidReceiveReroute(result directions.RouteResult, query directions.RouteQuery) {
	d.manager.applyOutcome(d.sessionID, OutcomeReceived, result.ID, "", "")
}

func (d *sessionDelegate) DidCancelReroute() {
	d.manager.applyOutcome(d.sessionID, OutcomeCancelled, "", "", "")
}

func (d *sessionDelegate) DidFailToReroute(failure reroute.Error) {
	d.manager.applyOutcome(d.sessionID, OutcomeFailed, "", string(failure.Kind), failure.Message)
}
