package db

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

// Schema SQL for version 1
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Devices. Rows are upserted on every cloud fetch and never deleted
-- by normal operation. monitor_interval 0 means no per-device
-- override.
CREATE TABLE IF NOT EXISTS devices (
    did               TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    model             TEXT NOT NULL,
    room_name         TEXT NOT NULL DEFAULT '',
    home_id           TEXT NOT NULL DEFAULT '',
    device_type       TEXT NOT NULL DEFAULT '',
    online            INTEGER NOT NULL DEFAULT 1,
    enabled           INTEGER NOT NULL DEFAULT 1,
    monitor_interval  INTEGER NOT NULL DEFAULT 0,
    properties        TEXT NOT NULL DEFAULT '{}',
    first_seen        TEXT NOT NULL DEFAULT (datetime('now')),
    last_seen         TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Status snapshots, one per poll per device. Append-only; pruned by
-- retention cleanup.
CREATE TABLE IF NOT EXISTS device_status (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    did         TEXT NOT NULL REFERENCES devices(did),
    status_data TEXT NOT NULL,
    online      INTEGER NOT NULL DEFAULT 1,
    timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Property time series, one row per (device, property, poll).
-- Append-only; pruned by retention cleanup.
CREATE TABLE IF NOT EXISTS device_properties (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    did            TEXT NOT NULL REFERENCES devices(did),
    property_name  TEXT NOT NULL,
    property_value TEXT NOT NULL,
    value_type     TEXT NOT NULL DEFAULT '',
    timestamp      TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Alerts. Never pruned by retention cleanup; mutated only by resolve.
CREATE TABLE IF NOT EXISTS alerts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    did         TEXT NOT NULL REFERENCES devices(did),
    alert_type  TEXT NOT NULL,
    severity    TEXT NOT NULL DEFAULT 'INFO',
    title       TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    resolved    INTEGER NOT NULL DEFAULT 0,
    resolved_at TEXT,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Per-device per-property monitoring overrides.
CREATE TABLE IF NOT EXISTS monitor_config (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    did             TEXT NOT NULL REFERENCES devices(did),
    property_name   TEXT NOT NULL,
    enabled         INTEGER NOT NULL DEFAULT 1,
    alert_enabled   INTEGER NOT NULL DEFAULT 0,
    alert_condition TEXT NOT NULL DEFAULT '',
    alert_threshold REAL NOT NULL DEFAULT 0,
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(did, property_name)
);

-- Free-form system log.
CREATE TABLE IF NOT EXISTS system_logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    level      TEXT NOT NULL,
    module     TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL,
    extra_data TEXT NOT NULL DEFAULT '{}',
    timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Indexes for "latest N" and "history since T" queries
CREATE INDEX IF NOT EXISTS idx_device_status_did_timestamp
    ON device_status(did, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_device_properties_did_timestamp
    ON device_properties(did, property_name, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_did_created
    ON alerts(did, created_at DESC);
`

// Migrate runs database migrations to bring the schema up to date.
func (db *DB) Migrate(ctx context.Context) error {
	version, err := db.getSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil // Already up to date
	}

	if version < 1 {
		if err := db.applySchemaV1(ctx); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version, or 0 if no schema exists.
func (db *DB) getSchemaVersion(ctx context.Context) (int, error) {
	// Check if schema_version table exists
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&count)
	if err != nil {
		return 0, err
	}

	if count == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// applySchemaV1 applies the initial schema.
func (db *DB) applySchemaV1(ctx context.Context) error {
	return db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}

		return nil
	})
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return db.getSchemaVersion(ctx)
}
