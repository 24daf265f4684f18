package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/miwatch/miwatch/pkg/mijia"
)

var ErrDeviceNotFound = errors.New("device not found")

// Device is the persisted view of a device.
type Device struct {
	DID             string
	Name            string
	Model           string
	RoomName        string
	HomeID          string
	DeviceType      string
	Online          bool
	Enabled         bool
	MonitorInterval int // Seconds; 0 means no per-device override
	Properties      string
	FirstSeen       time.Time
	LastSeen        time.Time
	UpdatedAt       time.Time
}

// DeviceStore provides device persistence operations. Devices are
// upserted on every cloud fetch and never deleted.
type DeviceStore interface {
	Upsert(ctx context.Context, info mijia.DeviceInfo) error
	Get(ctx context.Context, did string) (*Device, error)
	List(ctx context.Context) ([]*Device, error)
	SetMonitorInterval(ctx context.Context, did string, seconds int) error
}

// Devices returns a DeviceStore for this database.
func (db *DB) Devices() DeviceStore {
	return &deviceStore{db: db}
}

type deviceStore struct {
	db *DB
}

const deviceColumns = `did, name, model, room_name, home_id, device_type,
	online, enabled, monitor_interval, properties, first_seen, last_seen, updated_at`

func (s *deviceStore) Upsert(ctx context.Context, info mijia.DeviceInfo) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices WHERE did = ?`, info.DID).Scan(&exists)
		if err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.DateTime)
		if exists > 0 {
			_, err = tx.ExecContext(ctx, `
				UPDATE devices SET
					name = ?, model = ?, room_name = ?, home_id = ?,
					device_type = ?, online = ?, last_seen = ?, updated_at = ?
				WHERE did = ?
			`, info.Name, info.Model, info.RoomName, info.HomeID,
				info.Type, info.Online, now, now, info.DID)
			if err != nil {
				return fmt.Errorf("failed to update device: %w", err)
			}
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO devices (did, name, model, room_name, home_id, device_type, online)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, info.DID, info.Name, info.Model, info.RoomName, info.HomeID, info.Type, info.Online)
		if err != nil {
			return fmt.Errorf("failed to insert device: %w", err)
		}
		return nil
	})
}

func (s *deviceStore) Get(ctx context.Context, did string) (*Device, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM devices WHERE did = ?
	`, did)
	d, err := scanDevice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deviceStore) List(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM devices ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows.Scan)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *deviceStore) SetMonitorInterval(ctx context.Context, did string, seconds int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices SET monitor_interval = ?, updated_at = ? WHERE did = ?
	`, seconds, time.Now().UTC().Format(time.DateTime), did)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func scanDevice(scan func(dest ...any) error) (*Device, error) {
	d := &Device{}
	var firstSeen, lastSeen, updatedAt string
	err := scan(&d.DID, &d.Name, &d.Model, &d.RoomName, &d.HomeID, &d.DeviceType,
		&d.Online, &d.Enabled, &d.MonitorInterval, &d.Properties,
		&firstSeen, &lastSeen, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.FirstSeen, _ = time.Parse(time.DateTime, firstSeen)
	d.LastSeen, _ = time.Parse(time.DateTime, lastSeen)
	d.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return d, nil
}
