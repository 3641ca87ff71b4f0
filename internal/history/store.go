// Package history persists a ledger of merge cycles in SQLite so operators
// can see what each cycle merged, where it archived the files, and which
// inputs failed.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Outcome is how a cycle that reached the merge step ended.
type Outcome string

// Cycle outcomes as stored in the outcome column.
const (
	OutcomeMerged      Outcome = "merged"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeWriteFailed Outcome = "write_failed"
)

// Cycle is one ledger row.
type Cycle struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	WatchDir     string    `json:"watch_dir"`
	Outcome      Outcome   `json:"outcome"`
	OutputPath   string    `json:"output_path,omitempty"`
	ArchiveDir   string    `json:"archive_dir,omitempty"`
	Inputs       int       `json:"inputs"`
	TotalPages   int       `json:"total_pages"`
	ReadFailures int       `json:"read_failures"`
	MoveFailures int       `json:"move_failures"`
	Error        string    `json:"error,omitempty"`
}

// Duration returns how long the cycle ran.
func (c *Cycle) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// NewCycleID returns a fresh random cycle identifier.
func NewCycleID() string {
	return uuid.NewString()
}

// Store is the SQLite-backed cycle ledger. All methods are safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger at dbPath and applies pending
// migrations. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Debug("opening history database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	// Sole writer; also keeps a ":memory:" database on one connection.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("history: %s: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record inserts c. An empty ID is filled with NewCycleID.
func (s *Store) Record(ctx context.Context, c *Cycle) error {
	if c.ID == "" {
		c.ID = NewCycleID()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO cycles
		(id, started_at, finished_at, watch_dir, outcome, output_path, archive_dir,
		 inputs, total_pages, read_failures, move_failures, error_msg)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StartedAt.UnixNano(), c.FinishedAt.UnixNano(), c.WatchDir, string(c.Outcome),
		c.OutputPath, c.ArchiveDir, c.Inputs, c.TotalPages, c.ReadFailures, c.MoveFailures, c.Error,
	)
	if err != nil {
		return fmt.Errorf("history: recording cycle %s: %w", c.ID, err)
	}

	s.logger.Debug("cycle recorded",
		slog.String("id", c.ID),
		slog.String("outcome", string(c.Outcome)),
	)

	return nil
}

// Recent returns up to limit cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, watch_dir, outcome, output_path, archive_dir,
		inputs, total_pages, read_failures, move_failures, error_msg
		FROM cycles ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: querying cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle

	for rows.Next() {
		var (
			c                 Cycle
			started, finished int64
			outcome           string
		)

		if err := rows.Scan(&c.ID, &started, &finished, &c.WatchDir, &outcome, &c.OutputPath,
			&c.ArchiveDir, &c.Inputs, &c.TotalPages, &c.ReadFailures, &c.MoveFailures, &c.Error); err != nil {
			return nil, fmt.Errorf("history: scanning cycle: %w", err)
		}

		c.StartedAt = time.Unix(0, started)
		c.FinishedAt = time.Unix(0, finished)
		c.Outcome = Outcome(outcome)

		cycles = append(cycles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating cycles: %w", err)
	}

	return cycles, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
