// Package store provides storage backends for HabitPipe.
//
// This file implements a PostgreSQL-backed store for habit records.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/HabitPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure the habits table exists
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateHabit(ownerID, name, description string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`INSERT INTO habits (owner_id, name, description) VALUES ($1, $2, $3) RETURNING id`,
		ownerID, name, description).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore CreateHabit failed", "error", err, "owner", ownerID)
		return 0, fmt.Errorf("failed to insert habit for %s: %w", ownerID, err)
	}
	slog.Debug("PostgresStore CreateHabit succeeded", "owner", ownerID, "habitID", id)
	return id, nil
}

func (s *PostgresStore) ListHabits(ownerID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, owner_id, name, description, created_at, completed_days, total_days
		FROM habits WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		slog.Error("PostgresStore ListHabits query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to query habits for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		var h models.Habit
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Name, &h.Description, &h.CreatedAt, &h.CompletedDays, &h.TotalDays); err != nil {
			slog.Error("PostgresStore ListHabits scan failed", "error", err, "owner", ownerID)
			return nil, fmt.Errorf("failed to scan habit row: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListHabits rows iteration failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to iterate habit rows: %w", err)
	}
	slog.Debug("PostgresStore ListHabits succeeded", "owner", ownerID, "count", len(habits))
	return habits, nil
}

func (s *PostgresStore) GetHabit(habitID int64, ownerID string) (*models.Habit, error) {
	var h models.Habit
	err := s.db.QueryRow(`SELECT id, owner_id, name, description, created_at, completed_days, total_days
		FROM habits WHERE id = $1 AND owner_id = $2`, habitID, ownerID).
		Scan(&h.ID, &h.OwnerID, &h.Name, &h.Description, &h.CreatedAt, &h.CompletedDays, &h.TotalDays)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetHabit not found", "habitID", habitID, "owner", ownerID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetHabit failed", "error", err, "habitID", habitID, "owner", ownerID)
		return nil, fmt.Errorf("failed to get habit %d: %w", habitID, err)
	}
	slog.Debug("PostgresStore GetHabit found", "habitID", habitID, "owner", ownerID)
	return &h, nil
}

// RecordCompletion increments both counters in a single UPDATE so the
// read-modify-write cannot be torn by a concurrent completion.
func (s *PostgresStore) RecordCompletion(habitID int64, ownerID string) (bool, error) {
	res, err := s.db.Exec(`UPDATE habits SET completed_days = completed_days + 1, total_days = total_days + 1
		WHERE id = $1 AND owner_id = $2`, habitID, ownerID)
	if err != nil {
		slog.Error("PostgresStore RecordCompletion failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to record completion for habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("PostgresStore RecordCompletion rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check completion update for habit %d: %w", habitID, err)
	}
	slog.Debug("PostgresStore RecordCompletion done", "habitID", habitID, "owner", ownerID, "updated", affected > 0)
	return affected > 0, nil
}

func (s *PostgresStore) DeleteHabit(habitID int64, ownerID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM habits WHERE id = $1 AND owner_id = $2`, habitID, ownerID)
	if err != nil {
		slog.Error("PostgresStore DeleteHabit failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("PostgresStore DeleteHabit rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check delete for habit %d: %w", habitID, err)
	}
	slog.Debug("PostgresStore DeleteHabit done", "habitID", habitID, "owner", ownerID, "deleted", affected > 0)
	return affected > 0, nil
}

func (s *PostgresStore) UpdateDescription(habitID int64, ownerID, description string) (bool, error) {
	res, err := s.db.Exec(`UPDATE habits SET description = $1 WHERE id = $2 AND owner_id = $3`,
		description, habitID, ownerID)
	if err != nil {
		slog.Error("PostgresStore UpdateDescription failed", "error", err, "habitID", habitID, "owner", ownerID)
		return false, fmt.Errorf("failed to update description for habit %d: %w", habitID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("PostgresStore UpdateDescription rows affected failed", "error", err, "habitID", habitID)
		return false, fmt.Errorf("failed to check description update for habit %d: %w", habitID, err)
	}
	slog.Debug("PostgresStore UpdateDescription done", "habitID", habitID, "owner", ownerID, "updated", affected > 0)
	return affected > 0, nil
}

func (s *PostgresStore) OwnerStats(ownerID string) (*models.OwnerStats, error) {
	var stats models.OwnerStats
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(completed_days), 0), COALESCE(SUM(total_days), 0)
		FROM habits WHERE owner_id = $1`, ownerID).
		Scan(&stats.HabitCount, &stats.TotalCompleted, &stats.TotalDays)
	if err != nil {
		slog.Error("PostgresStore OwnerStats failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to aggregate stats for %s: %w", ownerID, err)
	}
	if stats.HabitCount == 0 {
		slog.Debug("PostgresStore OwnerStats no habits", "owner", ownerID)
		return nil, nil
	}
	slog.Debug("PostgresStore OwnerStats succeeded", "owner", ownerID, "habits", stats.HabitCount)
	return &stats, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
