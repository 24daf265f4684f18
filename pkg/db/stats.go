package db

import (
	"context"
	"fmt"
	"os"
)

// Statistics is an aggregate view over the store.
type Statistics struct {
	TotalDevices     int64   `json:"total_devices"`
	OnlineDevices    int64   `json:"online_devices"`
	StatusRecords    int64   `json:"total_status_records"`
	PropertyRecords  int64   `json:"total_property_records"`
	UnresolvedAlerts int64   `json:"unresolved_alerts"`
	DBSizeMB         float64 `json:"db_size_mb"`
}

// Stats collects aggregate statistics over the store.
func (db *DB) Stats(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM devices`, &stats.TotalDevices},
		{`SELECT COUNT(*) FROM devices WHERE online = 1`, &stats.OnlineDevices},
		{`SELECT COUNT(*) FROM device_status`, &stats.StatusRecords},
		{`SELECT COUNT(*) FROM device_properties`, &stats.PropertyRecords},
		{`SELECT COUNT(*) FROM alerts WHERE resolved = 0`, &stats.UnresolvedAlerts},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to collect statistics: %w", err)
		}
	}

	if info, err := os.Stat(db.path); err == nil {
		stats.DBSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return stats, nil
}
