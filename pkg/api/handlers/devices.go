package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/miwatch/miwatch/pkg/api/types"
	"github.com/miwatch/miwatch/pkg/db"
)

// DevicesHandler handles device query endpoints.
type DevicesHandler struct {
	store *db.DB
}

// NewDevicesHandler creates a new devices handler.
func NewDevicesHandler(store *db.DB) *DevicesHandler {
	return &DevicesHandler{store: store}
}

// ListDevices handles GET /devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	devices, err := h.store.Devices().List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	result := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		result = append(result, toDevice(d))
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:did
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	d, err := h.store.Devices().Get(c.Request.Context(), c.Param("did"))
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: "Device not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toDevice(d))
}

// SetInterval handles PATCH /devices/:did/interval
func (h *DevicesHandler) SetInterval(c *gin.Context) {
	var req types.SetIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}
	if req.Interval < 0 {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "interval must not be negative",
		})
		return
	}

	err := h.store.Devices().SetMonitorInterval(c.Request.Context(), c.Param("did"), req.Interval)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: "Device not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// History handles GET /devices/:did/history?property=...&since=...&until=...&limit=...
func (h *DevicesHandler) History(c *gin.Context) {
	property := c.Query("property")
	if property == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "property query parameter is required",
		})
		return
	}

	var since, until *time.Time
	for _, bound := range []struct {
		name string
		dest **time.Time
	}{
		{"since", &since},
		{"until", &until},
	} {
		raw := c.Query(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "invalid_request",
				Message: bound.name + " must be RFC 3339",
			})
			return
		}
		*bound.dest = &t
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{
				Error:   "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	did := c.Param("did")
	records, err := h.store.History().PropertyHistory(c.Request.Context(), did, property, since, until, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	samples := make([]types.PropertySample, 0, len(records))
	for _, r := range records {
		samples = append(samples, types.PropertySample{
			Value:     r.Value,
			ValueType: r.ValueType,
			Timestamp: r.Timestamp,
		})
	}

	c.JSON(http.StatusOK, types.HistoryResponse{
		DID:      did,
		Property: property,
		Samples:  samples,
		Count:    len(samples),
	})
}

// Status handles GET /devices/:did/status
func (h *DevicesHandler) Status(c *gin.Context) {
	did := c.Param("did")
	record, err := h.store.History().LatestStatus(c.Request.Context(), did)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "No status recorded for device",
		})
		return
	}

	c.JSON(http.StatusOK, types.StatusResponse{
		DID:       record.DID,
		Status:    record.Status,
		Online:    record.Online,
		Timestamp: record.Timestamp,
	})
}

// ListOverrides handles GET /devices/:did/overrides
func (h *DevicesHandler) ListOverrides(c *gin.Context) {
	did := c.Param("did")
	overrides, err := h.store.Overrides().ListForDevice(c.Request.Context(), did)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	result := make([]types.Override, 0, len(overrides))
	for _, o := range overrides {
		result = append(result, types.Override{
			Property:       o.PropertyName,
			Enabled:        o.Enabled,
			AlertEnabled:   o.AlertEnabled,
			AlertCondition: o.AlertCondition,
			AlertThreshold: o.AlertThreshold,
			UpdatedAt:      o.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, types.ListOverridesResponse{
		DID:       did,
		Overrides: result,
		Count:     len(result),
	})
}

// SetOverride handles PUT /devices/:did/overrides/:property
func (h *DevicesHandler) SetOverride(c *gin.Context) {
	var req types.SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	did := c.Param("did")
	if _, err := h.store.Devices().Get(c.Request.Context(), did); err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: "Device not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	// Omitted toggles default to on.
	override := db.Override{
		DID:            did,
		PropertyName:   c.Param("property"),
		Enabled:        req.Enabled == nil || *req.Enabled,
		AlertEnabled:   req.AlertEnabled == nil || *req.AlertEnabled,
		AlertCondition: req.AlertCondition,
		AlertThreshold: req.AlertThreshold,
	}
	if err := h.store.Overrides().Set(c.Request.Context(), override); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func toDevice(d *db.Device) types.Device {
	return types.Device{
		DID:             d.DID,
		Name:            d.Name,
		Model:           d.Model,
		RoomName:        d.RoomName,
		HomeID:          d.HomeID,
		DeviceType:      d.DeviceType,
		Online:          d.Online,
		Enabled:         d.Enabled,
		MonitorInterval: d.MonitorInterval,
		FirstSeen:       d.FirstSeen,
		LastSeen:        d.LastSeen,
	}
}
