package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend persists usage records in a SQLite database. It is
// intended for single-instance deployments: SQLite supports one writer,
// so the connection pool is pinned to a single connection.
//
// The database runs in WAL mode for concurrent read performance, with a
// final checkpoint on Close.
type SQLiteBackend struct {
	db        *sql.DB
	mu        sync.Mutex
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file location.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens (or creates) the database and prepares the
// statement set.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := b.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quota_usage (
		client_type   TEXT NOT NULL,
		endpoint_name TEXT NOT NULL,
		consumed      INTEGER NOT NULL,
		cycle_start   INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		PRIMARY KEY (client_type, endpoint_name)
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) prepareStatements() error {
	var err error

	b.saveStmt, err = b.db.Prepare(`
		INSERT INTO quota_usage (client_type, endpoint_name, consumed, cycle_start, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (client_type, endpoint_name) DO UPDATE SET
			consumed = excluded.consumed,
			cycle_start = excluded.cycle_start,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}

	b.deleteStmt, err = b.db.Prepare(`
		DELETE FROM quota_usage WHERE client_type = ? AND endpoint_name = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	return nil
}

// SaveUsage upserts one usage record.
func (b *SQLiteBackend) SaveUsage(ctx context.Context, rec *UsageRecord) error {
	if rec == nil {
		return fmt.Errorf("usage record cannot be nil")
	}
	if rec.ClientType == "" || rec.EndpointName == "" {
		return fmt.Errorf("usage record requires client type and endpoint name")
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.saveStmt.ExecContext(ctx,
		rec.ClientType,
		rec.EndpointName,
		rec.Consumed,
		rec.CycleStart.Unix(),
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}

// LoadUsage returns all persisted usage records.
func (b *SQLiteBackend) LoadUsage(ctx context.Context) ([]*UsageRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT client_type, endpoint_name, consumed, cycle_start, updated_at
		FROM quota_usage
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}
	defer rows.Close()

	var out []*UsageRecord
	for rows.Next() {
		var (
			rec        UsageRecord
			cycleStart int64
			updatedAt  int64
		)
		if err := rows.Scan(&rec.ClientType, &rec.EndpointName, &rec.Consumed, &cycleStart, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		rec.CycleStart = time.Unix(cycleStart, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return out, nil
}

// DeleteUsage removes the record for an endpoint.
func (b *SQLiteBackend) DeleteUsage(ctx context.Context, clientType, endpointName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.deleteStmt.ExecContext(ctx, clientType, endpointName); err != nil {
		return fmt.Errorf("failed to delete usage: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (b *SQLiteBackend) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.saveStmt != nil {
			b.saveStmt.Close()
		}
		if b.deleteStmt != nil {
			b.deleteStmt.Close()
		}
		if b.db != nil {
			_, _ = b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = b.db.Close()
		}
	})
	return closeErr
}
