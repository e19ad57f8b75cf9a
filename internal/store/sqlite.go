// Package store provides storage backends for HabitPipe.
//
// This file implements an SQLite-backed store for habit records.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/HabitPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the habits table exists
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateHabit(ownerID, name, description string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO habits (owner_id, name, description, created_at) VALUES (?, ?, ?, datetime('now'))`,
		ownerID, name, description)
	if err != nil {
		slog.Error("SQLiteStore CreateHabit failed", "error", err, "owner", ownerID)
		return 0, fmt.Errorf("failed to insert habit for %s: %w", ownerID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		slog.Error("SQLiteStore CreateHabit last insert id failed", "error", err, "owner", ownerID)
		return 0, fmt.Errorf("failed to get habit id for %s: %w", ownerID, err)
	}
	slog.Debug("SQLiteStore CreateHabit succeeded", "owner", ownerID, "habitID", id)
	return id, nil
}

func (s *SQLiteStore) ListHabits(ownerID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, name, description, created_at, completed_days, total_days
		FROM habits WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		slog.Error("SQLiteStore ListHabits query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to query habits for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		var h models.Habit
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Name, &h.Description, &h.CreatedAt, &h.CompletedDays, &h.TotalDays); err != nil {
			slog.Error("SQLiteStore ListHabits scan failed", "error", err, "owner", ownerID)
			return nil, fmt.Errorf("failed to scan habit row: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListHabits rows iteration failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to iterate habit rows: %w", err)
	}
	slog.Debug("SQLiteStore ListHabits succeeded", "owner", ownerID, "count", len(habits))
	return habits, nil
}

func (s *SQLiteStore) GetHabit(habitID int64, ownerID string) (*models.Habit, error) {
	var h models.Habit
	err := s.db.QueryRow(`SELECT id, owner_id, name, description, created_at, completed_days, total_days
		FROM habits WHERE id = ? AND owner_id = ?`, habitID, ownerID).
		Scan(&h.ID, &h.OwnerID, &h.Name, &h.Description, &h.CreatedAt, &h.CompletedDays, &h.TotalDays)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetHabit not found", "habitID", habitID, "owner", ownerID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetHabit failed", "error", err, "habitID", habitID, "owner", ownerID)
		return nil, fmt.Errorf("failed to get habit %d: %w", habitID, err)
	}
	slog.Debug("SQLiteStore GetHabit found", "habitID", habitID, "owner", ownerID)
	return &h, nil
}

// RecordCompletion increments both counters in a single UPDATE so the
// read-modify-write cannot be torn by a concurrent completion.
func (s *SQLiteStore) RecordCompletion(habitID int64, ownerID string) (bool, error) {
	res, err := s.db.Exec(`UPDATE habits SET completed_days = completed_days + 1, total_days = total_days + 1
		WHERE id = ? AND owner_id = ?`, habitID, ownerID)
	if err != nil {
		slog.Error("SQLiteStore RecordCompletion failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to record completion for habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("SQLiteStore RecordCompletion rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check completion update for habit %d: %w", habitID, err)
	}
	slog.Debug("SQLiteStore RecordCompletion done", "habitID", habitID, "owner", ownerID, "updated", affected > 0)
	return affected > 0, nil
}

func (s *SQLiteStore) DeleteHabit(habitID int64, ownerID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM habits WHERE id = ? AND owner_id = ?`, habitID, ownerID)
	if err != nil {
		slog.Error("SQLiteStore DeleteHabit failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("SQLiteStore DeleteHabit rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check delete for habit %d: %w", habitID, err)
	}
	slog.Debug("SQLiteStore DeleteHabit done", "habitID", habitID, "owner", ownerID, "deleted", affected > 0)
	return affected > 0, nil
}

func (s *SQLiteStore) UpdateDescription(habitID int64, ownerID, description string) (bool, error) {
	res, err := s.db.Exec(`UPDATE habits SET description = ? WHERE id = ? AND owner_id = ?`,
		description, habitID, ownerID)
	if err != nil {
		slog.Error("SQLiteStore UpdateDescription failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to update description for habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("SQLiteStore UpdateDescription rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check description update for habit %d: %w", habitID, err)
	}
	slog.Debug("SQLiteStore UpdateDescription done", "habitID", habitID, "owner", ownerID, "updated", affected > 0)
	return affected > 0, nil
}

func (s *SQLiteStore) OwnerStats(ownerID string) (*models.OwnerStats, error) {
	var stats models.OwnerStats
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(completed_days), 0), COALESCE(SUM(total_days), 0)
		FROM habits WHERE owner_id = ?`, ownerID).
		Scan(&stats.HabitCount, &stats.TotalCompleted, &stats.TotalDays)
	if err != nil {
		slog.Error("SQLiteStore OwnerStats failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to aggregate stats for %s: %w", ownerID, err)
	}
	if stats.HabitCount == 0 {
		slog.Debug("SQLiteStore OwnerStats no habits", "owner", ownerID)
		return nil, nil
	}
	slog.Debug("SQLiteStore OwnerStats succeeded", "owner", ownerID, "habits", stats.HabitCount)
	return &stats, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
