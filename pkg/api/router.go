package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/miwatch/miwatch/pkg/api/handlers"
	"github.com/miwatch/miwatch/pkg/db"
	"github.com/miwatch/miwatch/pkg/mijia"
	"github.com/miwatch/miwatch/pkg/monitor"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine  *gin.Engine
	store   *db.DB
	client  mijia.Client
	monitor *monitor.Monitor
}

// NewRouter creates a new API router
func NewRouter(store *db.DB, client mijia.Client, m *monitor.Monitor, logger zerolog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine, logger)

	router := &Router{
		engine:  engine,
		store:   store,
		client:  client,
		monitor: m,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.client, r.monitor)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		// Health
		v1.GET("/health", healthHandler.Health)

		// Devices
		devicesHandler := handlers.NewDevicesHandler(r.store)
		monitorHandler := handlers.NewMonitorHandler(r.monitor)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.POST("/fetch", monitorHandler.FetchDevices)
			devices.GET("/:did", devicesHandler.GetDevice)
			devices.PATCH("/:did/interval", devicesHandler.SetInterval)
			devices.GET("/:did/status", devicesHandler.Status)
			devices.GET("/:did/history", devicesHandler.History)
			devices.GET("/:did/overrides", devicesHandler.ListOverrides)
			devices.PUT("/:did/overrides/:property", devicesHandler.SetOverride)
		}

		// Alerts
		alertsHandler := handlers.NewAlertsHandler(r.store)
		alerts := v1.Group("/alerts")
		{
			alerts.GET("", alertsHandler.ListAlerts)
			alerts.POST("/:id/resolve", alertsHandler.ResolveAlert)
		}

		// Monitoring control
		mon := v1.Group("/monitor")
		{
			mon.POST("/start", monitorHandler.Start)
			mon.POST("/stop", monitorHandler.Stop)
			mon.GET("/status", monitorHandler.Status)
		}

		// System
		systemHandler := handlers.NewSystemHandler(r.store)
		v1.GET("/stats", systemHandler.Stats)
		v1.GET("/logs", systemHandler.Logs)
	}
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

// Engine exposes the underlying Gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
