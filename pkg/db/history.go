package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StatusRecord is one status snapshot for a device.
type StatusRecord struct {
	ID        int64
	DID       string
	Status    map[string]any
	Online    bool
	Timestamp time.Time
}

// PropertyRecord is one sampled property value.
type PropertyRecord struct {
	ID        int64
	DID       string
	Name      string
	Value     string
	ValueType string
	Timestamp time.Time
}

// HistoryStore provides append-only time-series persistence for
// device status and property readings.
type HistoryStore interface {
	// AppendStatus records one status snapshot and updates the
	// device's online flag and last_seen in the same transaction.
	AppendStatus(ctx context.Context, did string, status map[string]any, online bool) error

	// AppendProperty records one property sample. Values are stored
	// as text together with the Go type name of the value.
	AppendProperty(ctx context.Context, did, name string, value any) error

	// PropertyHistory returns samples for one device property,
	// newest first, optionally bounded by since/until.
	PropertyHistory(ctx context.Context, did, name string, since, until *time.Time, limit int) ([]*PropertyRecord, error)

	// LatestStatus returns the most recent status snapshot for a
	// device, or nil if none has been recorded.
	LatestStatus(ctx context.Context, did string) (*StatusRecord, error)

	// Cleanup deletes status and property rows strictly older than
	// now minus retentionDays. Devices and alerts are never touched.
	// Returns the deleted row counts for status and properties.
	Cleanup(ctx context.Context, retentionDays int) (int64, int64, error)
}

// History returns a HistoryStore for this database.
func (db *DB) History() HistoryStore {
	return &historyStore{db: db}
}

type historyStore struct {
	db *DB
}

func (s *historyStore) AppendStatus(ctx context.Context, did string, status map[string]any, online bool) error {
	if status == nil {
		status = map[string]any{}
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC().Format(time.DateTime)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO device_status (did, status_data, online, timestamp)
			VALUES (?, ?, ?, ?)
		`, did, string(data), online, now); err != nil {
			return fmt.Errorf("failed to insert status: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE devices SET last_seen = ?, online = ? WHERE did = ?
		`, now, online, did); err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		return nil
	})
}

func (s *historyStore) AppendProperty(ctx context.Context, did, name string, value any) error {
	valueStr, valueType := encodeValue(value)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_properties (did, property_name, property_value, value_type, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, did, name, valueStr, valueType, time.Now().UTC().Format(time.DateTime))
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

func (s *historyStore) PropertyHistory(ctx context.Context, did, name string, since, until *time.Time, limit int) ([]*PropertyRecord, error) {
	query := `
		SELECT id, did, property_name, property_value, value_type, timestamp
		FROM device_properties
		WHERE did = ? AND property_name = ?
	`
	args := []any{did, name}

	if since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, since.UTC().Format(time.DateTime))
	}
	if until != nil {
		query += ` AND timestamp <= ?`
		args = append(args, until.UTC().Format(time.DateTime))
	}

	if limit <= 0 {
		limit = 1000
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*PropertyRecord
	for rows.Next() {
		r := &PropertyRecord{}
		var ts string
		if err := rows.Scan(&r.ID, &r.DID, &r.Name, &r.Value, &r.ValueType, &ts); err != nil {
			return nil, err
		}
		r.Timestamp, _ = time.Parse(time.DateTime, ts)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *historyStore) LatestStatus(ctx context.Context, did string) (*StatusRecord, error) {
	r := &StatusRecord{}
	var data, ts string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, did, status_data, online, timestamp
		FROM device_status
		WHERE did = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, did).Scan(&r.ID, &r.DID, &data, &r.Online, &ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &r.Status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	r.Timestamp, _ = time.Parse(time.DateTime, ts)
	return r, nil
}

func (s *historyStore) Cleanup(ctx context.Context, retentionDays int) (int64, int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.DateTime)

	var statusDeleted, propsDeleted int64
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM device_status WHERE timestamp < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete status rows: %w", err)
		}
		if statusDeleted, err = result.RowsAffected(); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, `DELETE FROM device_properties WHERE timestamp < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete property rows: %w", err)
		}
		if propsDeleted, err = result.RowsAffected(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return statusDeleted, propsDeleted, nil
}

// encodeValue converts a property value to its stored text form plus
// a type tag. Maps and slices are stored as JSON.
func encodeValue(value any) (string, string) {
	switch value.(type) {
	case nil:
		return "", "nil"
	case map[string]any, []any:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value), fmt.Sprintf("%T", value)
		}
		return string(data), fmt.Sprintf("%T", value)
	default:
		return fmt.Sprint(value), fmt.Sprintf("%T", value)
	}
}
