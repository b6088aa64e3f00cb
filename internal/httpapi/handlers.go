package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"navigation-platform/internal/audit"
	"navigation-platform/internal/auth"
	"navigation-platform/internal/history"
	"navigation-platform/internal/metering"
	"navigation-platform/internal/rbac"
	"navigation-platform/internal/reporting"
	"navigation-platform/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth     *auth.Manager
	Sessions *session.Manager
	History  *history.Service
	Reports  *reporting.Service
	Metering *metering.Service
	Audit    *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID  string `json:"user_id"`
	FleetID string `json:"fleet_id"`
	Role    string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.FleetID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, fleet_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.FleetID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Sessions ---

type startSessionRequest struct {
	DriverID string `json:"driver_id"`
	Profile  string `json:"profile,omitempty"`
}

func (h Handlers) StartSession(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Sessions.Start(c.Request.Context(), fleetID, req.DriverID, req.Profile)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) ListSessions(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": h.Sessions.List(c.Request.Context(), fleetID)})
}

func (h Handlers) GetSession(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	s, err := h.Sessions.Get(c.Request.Context(), fleetID, c.Param("session_id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) EndSession(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	completed := c.Query("completed") == "true"
	s, err := h.Sessions.End(c.Request.Context(), fleetID, c.Param("session_id"), completed)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// --- Reroute lifecycle ---

type offRouteRequest struct {
	// RequestURL is the serialized reroute request the navigation client built.
	RequestURL string `json:"request_url"`
}

func (h Handlers) ReportOffRoute(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	var req offRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.RequestURL == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "request_url required"})
		return
	}
	if err := h.Sessions.ReportOffRoute(c.Request.Context(), fleetID, c.Param("session_id"), req.RequestURL); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "rerouting"})
}

func (h Handlers) ForceReroute(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	if err := h.Sessions.ForceReroute(c.Request.Context(), fleetID, sessionID); err != nil {
		h.sessionError(c, err)
		return
	}
	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogForcedReroute(c.Request.Context(), fleetID, userID, role, c.ClientIP(), sessionID)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "rerouting"})
}

func (h Handlers) CancelReroute(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	if err := h.Sessions.CancelReroute(c.Request.Context(), fleetID, c.Param("session_id")); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// --- Reroute configuration ---

func (h Handlers) GetRerouteConfig(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	cfg, err := h.Sessions.Config(c.Request.Context(), fleetID, c.Param("session_id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) UpdateRerouteConfig(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")
	var upd session.ConfigUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cfg, err := h.Sessions.UpdateConfig(c.Request.Context(), fleetID, sessionID, upd)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	if h.Audit != nil {
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogConfigChange(c.Request.Context(), fleetID, userID, role, c.ClientIP(), sessionID, "")
	}
	c.JSON(http.StatusOK, cfg)
}

// --- History & reports ---

func (h Handlers) SessionHistory(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := h.History.List(c.Request.Context(), fleetID, c.Param("session_id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h Handlers) SessionStats(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	stats, err := h.History.Stats(c.Request.Context(), fleetID, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no reroute activity"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats lookup failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) FleetRerouteReport(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sum, err := h.Reports.FleetSummary(c.Request.Context(), fleetID, from, to)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidReportReq) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Metering ---

type usageCostRequest struct {
	Provider     string `json:"provider"`
	Profile      string `json:"profile,omitempty"`
	Computations int    `json:"computations"`
}

func (h Handlers) UsageCost(c *gin.Context) {
	fleetID, ok := h.fleetID(c)
	if !ok {
		return
	}
	var req usageCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cost, err := h.Metering.CalculateUsageCost(c.Request.Context(), metering.UsageCostRequest{
		FleetID:      fleetID,
		Provider:     req.Provider,
		Profile:      req.Profile,
		Computations: req.Computations,
	})
	if err != nil {
		if errors.Is(err, metering.ErrPricingNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cost)
}

// --- helpers ---

func (h Handlers) fleetID(c *gin.Context) (string, bool) {
	fleetID, err := auth.FleetID(c.Request.Context())
	if err != nil || fleetID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "fleet_id required"})
		return "", false
	}
	return fleetID, true
}

func (h Handlers) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrStormLimited):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "reroute storm limit reached"})
	case errors.Is(err, session.ErrUnknownProvider):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown provider mode"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseWindow(fromRaw, toRaw string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			return time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			return time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
	}
	return from, to, nil
}

// Convenience middleware bundles.

func RequireFleetAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireFleet(), rbac.RequireAnyRole(roles...)}
}
