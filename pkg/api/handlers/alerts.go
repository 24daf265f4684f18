package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/miwatch/miwatch/pkg/api/types"
	"github.com/miwatch/miwatch/pkg/db"
)

// AlertsHandler handles alert endpoints.
type AlertsHandler struct {
	store *db.DB
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(store *db.DB) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// ListAlerts handles GET /alerts?did=...
func (h *AlertsHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.store.Alerts().Unresolved(c.Request.Context(), c.Query("did"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	result := make([]types.Alert, 0, len(alerts))
	for _, a := range alerts {
		result = append(result, types.Alert{
			ID:         a.ID,
			DID:        a.DID,
			AlertType:  a.AlertType,
			Severity:   a.Severity,
			Title:      a.Title,
			Message:    a.Message,
			Resolved:   a.Resolved,
			ResolvedAt: a.ResolvedAt,
			CreatedAt:  a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, types.ListAlertsResponse{
		Alerts: result,
		Count:  len(result),
	})
}

// ResolveAlert handles POST /alerts/:id/resolve
func (h *AlertsHandler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "alert id must be an integer",
		})
		return
	}

	if err := h.store.Alerts().Resolve(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, types.ErrorResponse{
				Error:   "not_found",
				Message: "Alert not found or already resolved",
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
