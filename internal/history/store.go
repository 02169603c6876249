package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cloudpose/internal/config"
)

// Mode distinguishes fixed-size runs from capacity searches.
type Mode string

const (
	ModeFixed  Mode = "fixed"
	ModeSearch Mode = "search"
)

// Run is one recorded load-test execution.
type Run struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	BaseURL         string
	Mode            Mode
	Users           int
	SpawnRate       int
	DurationSeconds int
	Requests        int64
	Failures        int64
	SuccessPercent  float64
	AvgResponseMS   float64
	// MaxUsers is the highest user count that reached full success; only set for searches.
	MaxUsers int
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a run. A missing ID is filled with a fresh UUID and returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.Mode == "" {
		run.Mode = ModeFixed
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO loadtest_runs (
            id, started_at, finished_at, base_url, mode, users, spawn_rate,
            duration_seconds, requests, failures, success_percent, avg_response_ms, max_users
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.BaseURL,
		string(run.Mode),
		run.Users,
		run.SpawnRate,
		run.DurationSeconds,
		run.Requests,
		run.Failures,
		run.SuccessPercent,
		run.AvgResponseMS,
		nullableInt(run.MaxUsers, run.Mode == ModeSearch),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// List returns runs newest first. A limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, base_url, mode, users, spawn_rate,
        duration_seconds, requests, failures, success_percent, avg_response_ms, max_users
        FROM loadtest_runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Clear removes every recorded run and reports how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM loadtest_runs")
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt string
		mode       string
		maxUsers   sql.NullInt64
	)
	if err := row.Scan(
		&run.ID,
		&startedAt,
		&finishedAt,
		&run.BaseURL,
		&mode,
		&run.Users,
		&run.SpawnRate,
		&run.DurationSeconds,
		&run.Requests,
		&run.Failures,
		&run.SuccessPercent,
		&run.AvgResponseMS,
		&maxUsers,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Mode = Mode(mode)
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	if maxUsers.Valid {
		run.MaxUsers = int(maxUsers.Int64)
	}
	return run, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableInt(value int, valid bool) any {
	if !valid {
		return nil
	}
	return value
}
