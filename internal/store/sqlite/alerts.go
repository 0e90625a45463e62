// Package sqlite persists alert definitions.
//
// The engine and the owner-facing management API share this store: the
// engine only ever writes trigger state, and does so with a guarded
// update so it can never clobber a concurrent owner edit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"stockwatch/internal/alert"
	"stockwatch/internal/model"
)

var (
	// ErrNotFound is returned when no alert matches the given ID.
	ErrNotFound = errors.New("alert not found")

	// ErrConflict is returned when an optimistic trigger-state update
	// lost the race against a concurrent write.
	ErrConflict = errors.New("alert was modified concurrently")
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/alerts.db"
}

// Store is the sqlx-backed alert store.
type Store struct {
	db *sqlx.DB
}

// DB returns the underlying database for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// New opens the database, enables WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer: SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite store opened", "path", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id             TEXT    PRIMARY KEY,
			owner_id       TEXT    NOT NULL,
			symbol         TEXT    NOT NULL,
			alert_type     TEXT    NOT NULL,
			indicator_type TEXT    NOT NULL DEFAULT '',
			condition      TEXT    NOT NULL,
			target_value   REAL    NOT NULL,
			cooldown_ns    INTEGER NOT NULL,
			is_active      INTEGER NOT NULL DEFAULT 1,
			trigger_count  INTEGER NOT NULL DEFAULT 0,
			last_triggered TIMESTAMP,
			expires_at     TIMESTAMP,
			data_issue     TEXT    NOT NULL DEFAULT '',
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alerts(symbol);
		CREATE INDEX IF NOT EXISTS idx_alerts_owner  ON alerts(owner_id);
	`)
	return err
}

// CreateAlert validates the definition, assigns an ID and persists it.
// Invalid definitions are rejected here, never at evaluation time.
func (s *Store) CreateAlert(ctx context.Context, a *model.AlertDefinition) error {
	if a.Cooldown == 0 {
		a.Cooldown = model.DefaultCooldown
	}
	if err := alert.Validate(a); err != nil {
		return err
	}

	a.ID = uuid.NewString()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.TriggerCount = 0
	a.LastTriggered = nil
	a.DataIssue = ""

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO alerts (id, owner_id, symbol, alert_type, indicator_type, condition,
			target_value, cooldown_ns, is_active, trigger_count, last_triggered,
			expires_at, data_issue, created_at, updated_at)
		VALUES (:id, :owner_id, :symbol, :alert_type, :indicator_type, :condition,
			:target_value, :cooldown_ns, :is_active, :trigger_count, :last_triggered,
			:expires_at, :data_issue, :created_at, :updated_at)
	`, a)
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	return nil
}

// GetAlert loads one alert by ID.
func (s *Store) GetAlert(ctx context.Context, id string) (model.AlertDefinition, error) {
	var a model.AlertDefinition
	err := s.db.GetContext(ctx, &a, `SELECT * FROM alerts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("sqlite get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns every alert owned by ownerID, newest first.
func (s *Store) ListAlerts(ctx context.Context, ownerID string) ([]model.AlertDefinition, error) {
	var alerts []model.AlertDefinition
	err := s.db.SelectContext(ctx, &alerts,
		`SELECT * FROM alerts WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite list alerts: %w", err)
	}
	return alerts, nil
}

// ListActiveAlerts returns all alerts with the active flag set. Alerts
// currently cooling down or expired are included — the scheduler applies
// the effective-status filter.
func (s *Store) ListActiveAlerts(ctx context.Context) ([]model.AlertDefinition, error) {
	var alerts []model.AlertDefinition
	err := s.db.SelectContext(ctx, &alerts,
		`SELECT * FROM alerts WHERE is_active = 1 ORDER BY symbol, created_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list active alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlert persists owner-editable definition fields and clears any
// data issue (a changed definition gets a fresh chance at the source).
func (s *Store) UpdateAlert(ctx context.Context, a *model.AlertDefinition) error {
	if err := alert.Validate(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	a.DataIssue = ""

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE alerts SET
			symbol = :symbol, alert_type = :alert_type, indicator_type = :indicator_type,
			condition = :condition, target_value = :target_value, cooldown_ns = :cooldown_ns,
			is_active = :is_active, expires_at = :expires_at, data_issue = :data_issue,
			updated_at = :updated_at
		WHERE id = :id
	`, a)
	if err != nil {
		return fmt.Errorf("sqlite update alert: %w", err)
	}
	return requireRow(res)
}

// SetActive pauses or resumes one alert.
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("sqlite set active: %w", err)
	}
	return requireRow(res)
}

// DeleteAlert removes one alert permanently.
func (s *Store) DeleteAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete alert: %w", err)
	}
	return requireRow(res)
}

// UpdateTriggerState records a trigger: increments the trigger count and
// stamps last_triggered. The update is optimistic — it only applies when
// the stored count still equals prevCount, so the engine's write never
// overwrites a concurrent owner edit (or a duplicate trigger from a
// racing evaluation). Returns ErrConflict when the guard fails.
func (s *Store) UpdateTriggerState(ctx context.Context, alertID string, prevCount int, triggeredAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET trigger_count = trigger_count + 1, last_triggered = ?, updated_at = ?
		WHERE id = ? AND trigger_count = ?
	`, triggeredAt.UTC(), time.Now().UTC(), alertID, prevCount)
	if err != nil {
		return fmt.Errorf("sqlite update trigger state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// FlagSymbolIssue marks every alert on the symbol with a data issue.
// Flagged alerts are skipped each tick until their definition changes.
func (s *Store) FlagSymbolIssue(ctx context.Context, symbol, issue string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET data_issue = ?, updated_at = ? WHERE symbol = ?`,
		issue, time.Now().UTC(), symbol)
	if err != nil {
		return fmt.Errorf("sqlite flag symbol issue: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
