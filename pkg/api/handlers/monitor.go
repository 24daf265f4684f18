package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miwatch/miwatch/pkg/api/types"
	"github.com/miwatch/miwatch/pkg/monitor"
)

// MonitorHandler handles monitoring control endpoints.
type MonitorHandler struct {
	monitor *monitor.Monitor
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(m *monitor.Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: m}
}

// Start handles POST /monitor/start. The body is optional; when
// present it narrows monitoring to the listed device ids.
func (h *MonitorHandler) Start(c *gin.Context) {
	var req types.StartMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	if err := h.monitor.Start(req.DeviceIDs...); err != nil {
		switch {
		case errors.Is(err, monitor.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, types.ErrorResponse{
				Error:   "already_running",
				Message: "Monitoring is already running",
			})
		case errors.Is(err, monitor.ErrNoDevices):
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "no_devices",
				Message: "No known devices to monitor",
			})
		case errors.Is(err, monitor.ErrClientUnavailable):
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Error:   "client_unavailable",
				Message: "Cloud client is not available",
			})
		default:
			c.JSON(http.StatusInternalServerError, types.ErrorResponse{
				Error:   "start_failed",
				Message: err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, h.status())
}

// Stop handles POST /monitor/stop
func (h *MonitorHandler) Stop(c *gin.Context) {
	h.monitor.Stop()
	c.JSON(http.StatusOK, h.status())
}

// Status handles GET /monitor/status
func (h *MonitorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

// FetchDevices handles POST /devices/fetch
func (h *MonitorHandler) FetchDevices(c *gin.Context) {
	if err := h.monitor.FetchDevices(c.Request.Context()); err != nil {
		if errors.Is(err, monitor.ErrClientUnavailable) {
			c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
				Error:   "client_unavailable",
				Message: "Cloud client is not available",
			})
			return
		}
		c.JSON(http.StatusBadGateway, types.ErrorResponse{
			Error:   "fetch_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"devices": len(h.monitor.Devices())})
}

func (h *MonitorHandler) status() types.MonitorStatusResponse {
	return types.MonitorStatusResponse{
		Running: h.monitor.Running(),
		Devices: len(h.monitor.Devices()),
	}
}
