package main

import (
	"net/http"

	"navigation-platform/internal/httpapi"
	"navigation-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine, h httpapi.Handlers, requireAccess gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	v1.POST("/auth/login", h.Login)

	protected := v1.Group("")
	protected.Use(requireAccess)

	// Session lifecycle. Drivers report their own off-route events;
	// dispatchers manage sessions across the fleet.
	sessions := protected.Group("/sessions")
	sessions.Use(httpapi.RequireFleetAndAnyRole(rbac.RoleDriver, rbac.RoleDispatcher)...)
	{
		sessions.POST("", h.StartSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:session_id", h.GetSession)
		sessions.DELETE("/:session_id", h.EndSession)
		sessions.POST("/:session_id/off-route", h.ReportOffRoute)
		sessions.POST("/:session_id/cancel-reroute", h.CancelReroute)
	}

	// Dispatcher-only reroute controls.
	dispatch := protected.Group("/sessions")
	dispatch.Use(httpapi.RequireFleetAndAnyRole(rbac.RoleDispatcher)...)
	{
		dispatch.POST("/:session_id/reroute", h.ForceReroute)
		dispatch.GET("/:session_id/reroute-config", h.GetRerouteConfig)
		dispatch.PATCH("/:session_id/reroute-config", h.UpdateRerouteConfig)
	}

	// History and reporting.
	reports := protected.Group("")
	reports.Use(httpapi.RequireFleetAndAnyRole(rbac.RoleAnalyst, rbac.RoleDispatcher)...)
	{
		reports.GET("/sessions/:session_id/history", h.SessionHistory)
		reports.GET("/sessions/:session_id/stats", h.SessionStats)
		reports.GET("/reports/reroutes", h.FleetRerouteReport)
		reports.POST("/metering/usage-cost", h.UsageCost)
	}
}
