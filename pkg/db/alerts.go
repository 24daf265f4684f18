package db

import (
	"context"
	"errors"
	"time"
)

var ErrAlertNotFound = errors.New("alert not found")

// Alert severities.
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// Alert is one alert row. Alerts are append-only except for the
// resolve operation.
type Alert struct {
	ID         int64
	DID        string
	AlertType  string
	Severity   string
	Title      string
	Message    string
	Resolved   bool
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// AlertStore provides alert persistence operations.
type AlertStore interface {
	// Append creates a new unresolved alert and returns its id.
	Append(ctx context.Context, did, alertType, severity, title, message string) (int64, error)

	// Unresolved returns unresolved alerts newest first. An empty
	// did returns alerts for all devices.
	Unresolved(ctx context.Context, did string) ([]*Alert, error)

	// Resolve marks an alert resolved and stamps resolved_at.
	Resolve(ctx context.Context, id int64) error
}

// Alerts returns an AlertStore for this database.
func (db *DB) Alerts() AlertStore {
	return &alertStore{db: db}
}

type alertStore struct {
	db *DB
}

func (s *alertStore) Append(ctx context.Context, did, alertType, severity, title, message string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (did, alert_type, severity, title, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, did, alertType, severity, title, message, time.Now().UTC().Format(time.DateTime))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *alertStore) Unresolved(ctx context.Context, did string) ([]*Alert, error) {
	query := `
		SELECT id, did, alert_type, severity, title, message, resolved, resolved_at, created_at
		FROM alerts
		WHERE resolved = 0
	`
	var args []any
	if did != "" {
		query += ` AND did = ?`
		args = append(args, did)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var alerts []*Alert
	for rows.Next() {
		a := &Alert{}
		var resolvedAt *string
		var createdAt string
		if err := rows.Scan(&a.ID, &a.DID, &a.AlertType, &a.Severity, &a.Title,
			&a.Message, &a.Resolved, &resolvedAt, &createdAt); err != nil {
			return nil, err
		}
		if resolvedAt != nil {
			t, _ := time.Parse(time.DateTime, *resolvedAt)
			a.ResolvedAt = &t
		}
		a.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *alertStore) Resolve(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET resolved = 1, resolved_at = ?
		WHERE id = ? AND resolved = 0
	`, time.Now().UTC().Format(time.DateTime), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}
	return nil
}
