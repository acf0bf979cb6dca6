// Package storage keeps the history of sent alerts in SQLite. The monitor
// consults it to suppress repeated alerts for the same rule within a cooldown,
// and rotates old rows so the database does not grow without bound.
//
// Earthquake events are never persisted; every cycle re-fetches them.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/seismoalert/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id            TEXT PRIMARY KEY,
    rule_name     TEXT NOT NULL,
    message       TEXT NOT NULL,
    severity      TEXT NOT NULL,
    event_count   INTEGER NOT NULL,
    max_magnitude REAL NOT NULL,
    triggered_ns  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_rule ON alerts(rule_name, triggered_ns);
CREATE INDEX IF NOT EXISTS idx_alerts_time ON alerts(triggered_ns);
`

// Storage is the SQLite-backed alert history.
type Storage struct {
	db *sql.DB
}

// New opens or creates the database at path and applies the schema.
func New(path string) (*Storage, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "seismoalert", "alerts.db")
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A second connection to :memory: would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordAlert stores a sent alert.
func (s *Storage) RecordAlert(ctx context.Context, a models.Alert) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, rule_name, message, severity, event_count, max_magnitude, triggered_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RuleName, a.Message, a.Severity, a.EventCount, a.MaxMag, a.TriggeredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// LastSent returns when rule last fired. ok is false if it never has.
func (s *Storage) LastSent(ctx context.Context, rule string) (t time.Time, ok bool, err error) {
	var ns sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(triggered_ns) FROM alerts WHERE rule_name = ?`, rule,
	).Scan(&ns)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last sent: %w", err)
	}
	if !ns.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, ns.Int64).UTC(), true, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Storage) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		return []models.Alert{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_name, message, severity, event_count, max_magnitude, triggered_ns
		FROM alerts ORDER BY triggered_ns DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		var ns int64
		if err := rows.Scan(&a.ID, &a.RuleName, &a.Message, &a.Severity, &a.EventCount, &a.MaxMag, &ns); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TriggeredAt = time.Unix(0, ns).UTC()
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

// Rotate deletes all but the newest maxAlerts rows and reports how many were
// removed. A non-positive maxAlerts keeps everything.
func (s *Storage) Rotate(ctx context.Context, maxAlerts int) (int, error) {
	if maxAlerts <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM alerts WHERE id NOT IN (
			SELECT id FROM alerts ORDER BY triggered_ns DESC, id LIMIT ?
		)`, maxAlerts)
	if err != nil {
		return 0, fmt.Errorf("rotate alerts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rotate alerts: %w", err)
	}
	return int(n), nil
}
