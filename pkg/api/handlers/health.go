package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/miwatch/miwatch/pkg/api/types"
	"github.com/miwatch/miwatch/pkg/mijia"
	"github.com/miwatch/miwatch/pkg/monitor"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	client  mijia.Client
	monitor *monitor.Monitor
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(client mijia.Client, m *monitor.Monitor) *HealthHandler {
	return &HealthHandler{client: client, monitor: m}
}

// Health handles GET /health. The service is degraded, not down, when
// the cloud client is unavailable: stored data stays queryable.
func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	clientState := "available"
	if !h.client.Available() {
		status = "degraded"
		clientState = "unavailable"
	}

	c.JSON(http.StatusOK, types.HealthResponse{
		Status:     status,
		Client:     clientState,
		Monitoring: h.monitor.Running(),
		Timestamp:  time.Now().UTC(),
	})
}
