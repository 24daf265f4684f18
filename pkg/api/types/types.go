package types

import "time"

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Client     string    `json:"client"`
	Monitoring bool      `json:"monitoring"`
	Timestamp  time.Time `json:"timestamp"`
}

// Device is the API view of a persisted device.
type Device struct {
	DID             string    `json:"did"`
	Name            string    `json:"name"`
	Model           string    `json:"model"`
	RoomName        string    `json:"room_name"`
	HomeID          string    `json:"home_id"`
	DeviceType      string    `json:"device_type"`
	Online          bool      `json:"online"`
	Enabled         bool      `json:"enabled"`
	MonitorInterval int       `json:"monitor_interval"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// ListDevicesResponse wraps a device list.
type ListDevicesResponse struct {
	Devices []Device `json:"devices"`
	Count   int      `json:"count"`
}

// Alert is the API view of an alert row.
type Alert struct {
	ID         int64      `json:"id"`
	DID        string     `json:"did"`
	AlertType  string     `json:"alert_type"`
	Severity   string     `json:"severity"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListAlertsResponse wraps an alert list.
type ListAlertsResponse struct {
	Alerts []Alert `json:"alerts"`
	Count  int     `json:"count"`
}

// StatusResponse is a device's most recent status snapshot.
type StatusResponse struct {
	DID       string         `json:"did"`
	Status    map[string]any `json:"status"`
	Online    bool           `json:"online"`
	Timestamp time.Time      `json:"timestamp"`
}

// PropertySample is one time-series point.
type PropertySample struct {
	Value     string    `json:"value"`
	ValueType string    `json:"value_type"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse wraps a property history query result.
type HistoryResponse struct {
	DID      string           `json:"did"`
	Property string           `json:"property"`
	Samples  []PropertySample `json:"samples"`
	Count    int              `json:"count"`
}

// SystemLog is the API view of a system log row.
type SystemLog struct {
	ID        int64          `json:"id"`
	Level     string         `json:"level"`
	Module    string         `json:"module"`
	Message   string         `json:"message"`
	Extra     map[string]any `json:"extra,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ListLogsResponse wraps a system log list.
type ListLogsResponse struct {
	Logs  []SystemLog `json:"logs"`
	Count int         `json:"count"`
}

// Override is the API view of a per-property monitoring override.
type Override struct {
	Property       string    `json:"property"`
	Enabled        bool      `json:"enabled"`
	AlertEnabled   bool      `json:"alert_enabled"`
	AlertCondition string    `json:"alert_condition,omitempty"`
	AlertThreshold float64   `json:"alert_threshold,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListOverridesResponse wraps a device's override list.
type ListOverridesResponse struct {
	DID       string     `json:"did"`
	Overrides []Override `json:"overrides"`
	Count     int        `json:"count"`
}

// SetOverrideRequest creates or replaces a per-property override.
type SetOverrideRequest struct {
	Enabled        *bool   `json:"enabled"`
	AlertEnabled   *bool   `json:"alert_enabled"`
	AlertCondition string  `json:"alert_condition"`
	AlertThreshold float64 `json:"alert_threshold"`
}

// SetIntervalRequest sets a device's poll interval override.
// Zero clears the override.
type SetIntervalRequest struct {
	Interval int `json:"interval"`
}

// StartMonitorRequest optionally narrows monitoring to specific
// devices.
type StartMonitorRequest struct {
	DeviceIDs []string `json:"device_ids"`
}

// MonitorStatusResponse reports the monitor's state.
type MonitorStatusResponse struct {
	Running bool `json:"running"`
	Devices int  `json:"devices"`
}
