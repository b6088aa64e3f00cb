package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"navigation-platform/internal/audit"
	"navigation-platform/internal/auth"
	"navigation-platform/internal/directions"
	"navigation-platform/internal/rbac"
	"navigation-platform/internal/session"

	"github.com/gin-gonic/gin"
)

type staticProvider struct{}

func (staticProvider) Name() string { return "static" }

func (staticProvider) HealthCheck(context.Context) error { return nil }

func (staticProvider) ComputeRoute(ctx context.Context, q directions.RouteQuery, creds directions.Credentials) (directions.RouteResult, error) {
	return directions.RouteResult{
		ID:     "static-route",
		Routes: []directions.Route{{DistanceMeters: 10, DurationSeconds: 5}},
		Query:  q,
	}, nil
}

func identity(fleetID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "user-1", fleetID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(auditRepo *audit.MemoryRepo) (*gin.Engine, Handlers) {
	gin.SetMode(gin.TestMode)

	mgr := session.NewManager(session.ManagerConfig{DefaultProvider: staticProvider{}}, nil)
	h := Handlers{
		Sessions: mgr,
		Audit:    audit.NewService(auditRepo),
	}

	r := gin.New()
	r.Use(identity("fleet-a", rbac.RoleDispatcher))
	r.POST("/sessions", h.StartSession)
	r.GET("/sessions/:session_id", h.GetSession)
	r.POST("/sessions/:session_id/off-route", h.ReportOffRoute)
	r.POST("/sessions/:session_id/reroute", h.ForceReroute)
	r.GET("/sessions/:session_id/reroute-config", h.GetRerouteConfig)
	r.PATCH("/sessions/:session_id/reroute-config", h.UpdateRerouteConfig)
	return r, h
}

func startSession(t *testing.T, r *gin.Engine) session.Session {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"driver_id":"d1","profile":"driving"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: status %d body %s", w.Code, w.Body.String())
	}
	var s session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

func TestStartAndGetSession(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())
	s := startSession(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+s.SessionID, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get session: status %d", w.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReportOffRoute(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())
	s := startSession(t, r)

	body := `{"request_url":"https://api.example.com/directions/v5/nav/driving/13.4,52.5;13.5,52.6?access_token=t"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+s.SessionID+"/off-route", strings.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body %s", w.Code, w.Body.String())
	}
}

func TestReportOffRoute_MissingURL(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())
	s := startSession(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+s.SessionID+"/off-route", strings.NewReader(`{}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateRerouteConfig(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())
	s := startSession(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/sessions/"+s.SessionID+"/reroute-config", strings.NewReader(`{"proactive":false,"avoid_maneuver_seconds":12.5}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", w.Code, w.Body.String())
	}

	var cfg session.RerouteConfig
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Proactive || cfg.AvoidManeuverSeconds != 12.5 {
		t.Fatalf("config not applied: %+v", cfg)
	}
}

func TestUpdateRerouteConfig_UnknownProvider(t *testing.T) {
	r, _ := newTestRouter(audit.NewMemoryRepo())
	s := startSession(t, r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/sessions/"+s.SessionID+"/reroute-config", strings.NewReader(`{"provider_mode":"martian-router"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestForceReroute_Audited(t *testing.T) {
	repo := audit.NewMemoryRepo()
	r, _ := newTestRouter(repo)
	s := startSession(t, r)

	// Prime the engine with an off-route request so force has something to replay.
	body := `{"request_url":"https://api.example.com/directions/v5/nav/driving/13.4,52.5;13.5,52.6?access_token=t"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/"+s.SessionID+"/off-route", strings.NewReader(body)))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/"+s.SessionID+"/reroute", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	events := repo.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeForcedReroute {
		t.Fatalf("expected forced reroute audit event, got %+v", events)
	}
}
