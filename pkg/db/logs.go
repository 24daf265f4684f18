package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SystemLog is one free-form system log row.
type SystemLog struct {
	ID        int64
	Level     string
	Module    string
	Message   string
	Extra     map[string]any
	Timestamp time.Time
}

// LogStore provides system_logs persistence.
type LogStore interface {
	Append(ctx context.Context, level, module, message string, extra map[string]any) error
	Recent(ctx context.Context, limit int) ([]*SystemLog, error)
}

// Logs returns a LogStore for this database.
func (db *DB) Logs() LogStore {
	return &logStore{db: db}
}

type logStore struct {
	db *DB
}

func (s *logStore) Append(ctx context.Context, level, module, message string, extra map[string]any) error {
	if extra == nil {
		extra = map[string]any{}
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("failed to encode extra data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO system_logs (level, module, message, extra_data, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, level, module, message, string(data), time.Now().UTC().Format(time.DateTime))
	return err
}

func (s *logStore) Recent(ctx context.Context, limit int) ([]*SystemLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, module, message, extra_data, timestamp
		FROM system_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var logs []*SystemLog
	for rows.Next() {
		l := &SystemLog{}
		var extra, ts string
		if err := rows.Scan(&l.ID, &l.Level, &l.Module, &l.Message, &extra, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(extra), &l.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode extra data: %w", err)
		}
		l.Timestamp, _ = time.Parse(time.DateTime, ts)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
