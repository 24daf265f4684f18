package db

import (
	"context"
	"time"
)

// Override is a per-device per-property monitoring override row.
type Override struct {
	ID             int64
	DID            string
	PropertyName   string
	Enabled        bool
	AlertEnabled   bool
	AlertCondition string
	AlertThreshold float64
	UpdatedAt      time.Time
}

// OverrideStore provides monitor_config persistence.
type OverrideStore interface {
	// Set inserts or updates the override for (did, property).
	Set(ctx context.Context, o Override) error

	// ListForDevice returns the overrides for a device ordered by
	// property name.
	ListForDevice(ctx context.Context, did string) ([]*Override, error)
}

// Overrides returns an OverrideStore for this database.
func (db *DB) Overrides() OverrideStore {
	return &overrideStore{db: db}
}

type overrideStore struct {
	db *DB
}

func (s *overrideStore) Set(ctx context.Context, o Override) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_config (did, property_name, enabled, alert_enabled, alert_condition, alert_threshold, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(did, property_name) DO UPDATE SET
			enabled = excluded.enabled,
			alert_enabled = excluded.alert_enabled,
			alert_condition = excluded.alert_condition,
			alert_threshold = excluded.alert_threshold,
			updated_at = excluded.updated_at
	`, o.DID, o.PropertyName, o.Enabled, o.AlertEnabled, o.AlertCondition, o.AlertThreshold,
		time.Now().UTC().Format(time.DateTime))
	return err
}

func (s *overrideStore) ListForDevice(ctx context.Context, did string) ([]*Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, did, property_name, enabled, alert_enabled, alert_condition, alert_threshold, updated_at
		FROM monitor_config
		WHERE did = ?
		ORDER BY property_name
	`, did)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var overrides []*Override
	for rows.Next() {
		o := &Override{}
		var updatedAt string
		if err := rows.Scan(&o.ID, &o.DID, &o.PropertyName, &o.Enabled,
			&o.AlertEnabled, &o.AlertCondition, &o.AlertThreshold, &updatedAt); err != nil {
			return nil, err
		}
		o.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
