package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/agrolink/core/model"
	corestore "github.com/kilianp07/agrolink/core/store"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS device_status (
        device_id TEXT PRIMARY KEY,
        online INTEGER NOT NULL,
        last_checked INTEGER NOT NULL,
        offline_since INTEGER
    );`,
	`CREATE TABLE IF NOT EXISTS alert_rules (
        id TEXT PRIMARY KEY,
        active INTEGER NOT NULL,
        last_triggered INTEGER,
        record TEXT NOT NULL
    );`,
}

// SQLiteStore persists device statuses and alert rules in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ corestore.StatusStore = (*SQLiteStore)(nil)
	_ corestore.RuleStore   = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// SaveStatus upserts the status of a device.
func (s *SQLiteStore) SaveStatus(ctx context.Context, st corestore.DeviceStatus) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO device_status (device_id, online, last_checked, offline_since)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(device_id) DO UPDATE SET online = excluded.online,
            last_checked = excluded.last_checked, offline_since = excluded.offline_since`,
		st.DeviceID, boolInt(st.Online), st.LastChecked.UnixMilli(), nullableMillis(st.OfflineSince))
	return err
}

// Statuses returns every persisted status ordered by device.
func (s *SQLiteStore) Statuses(ctx context.Context) ([]corestore.DeviceStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, online, last_checked, offline_since FROM device_status ORDER BY device_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []corestore.DeviceStatus
	for rows.Next() {
		var (
			st      corestore.DeviceStatus
			online  int
			checked int64
			offline sql.NullInt64
		)
		if err := rows.Scan(&st.DeviceID, &online, &checked, &offline); err != nil {
			return nil, err
		}
		st.Online = online == 1
		st.LastChecked = time.UnixMilli(checked)
		if offline.Valid {
			st.OfflineSince = time.UnixMilli(offline.Int64)
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// UpsertRule validates and stores a rule, keeping its trigger time.
func (s *SQLiteStore) UpsertRule(ctx context.Context, r model.AlertRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO alert_rules (id, active, last_triggered, record)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET active = excluded.active, record = excluded.record`,
		r.ID, boolInt(r.Active), nullableMillis(r.LastTriggeredAt), string(b))
	return err
}

// ActiveRules returns active rules with their latest trigger time.
func (s *SQLiteStore) ActiveRules(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record, last_triggered FROM alert_rules WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.AlertRule
	for rows.Next() {
		var (
			data string
			last sql.NullInt64
		)
		if err := rows.Scan(&data, &last); err != nil {
			return nil, err
		}
		var r model.AlertRule
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal rule: %w", err)
		}
		r.LastTriggeredAt = time.Time{}
		if last.Valid {
			r.LastTriggeredAt = time.UnixMilli(last.Int64)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// MarkTriggered records the trigger time of a rule.
func (s *SQLiteStore) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alert_rules SET last_triggered = ? WHERE id = ?`, at.UnixMilli(), ruleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %s not found", ruleID)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
