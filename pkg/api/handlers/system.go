package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/miwatch/miwatch/pkg/api/types"
	"github.com/miwatch/miwatch/pkg/db"
)

// SystemHandler handles statistics and system log endpoints.
type SystemHandler struct {
	store *db.DB
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(store *db.DB) *SystemHandler {
	return &SystemHandler{store: store}
}

// Stats handles GET /stats
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Logs handles GET /logs?limit=...
func (h *SystemHandler) Logs(c *gin.Context) {
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

	logs, err := h.store.Logs().Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "store_error",
			Message: err.Error(),
		})
		return
	}

	result := make([]types.SystemLog, 0, len(logs))
	for _, l := range logs {
		result = append(result, types.SystemLog{
			ID:        l.ID,
			Level:     l.Level,
			Module:    l.Module,
			Message:   l.Message,
			Extra:     l.Extra,
			Timestamp: l.Timestamp,
		})
	}

	c.JSON(http.StatusOK, types.ListLogsResponse{
		Logs:  result,
		Count: len(result),
	})
}
