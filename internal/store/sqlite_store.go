package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dropwatch/internal/files"
	"dropwatch/internal/logging"
	"dropwatch/internal/metrics"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps the known-file set in a SQLite database. It trades the
// whole-file rewrite of FileStore for indexed single-row updates, which
// matters for directories with very many files.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger *slog.Logger, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "store"),
		now:    o.now,
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'dropwatch state clear' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) KnownFiles(ctx context.Context) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := map[string]struct{}{}
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT file_name FROM known_files")
		if err != nil {
			return err
		}
		defer rows.Close()
		clear(known)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			known[name] = struct{}{}
		}
		return rows.Err()
	})
	metrics.ObserveStore("read", err)
	if err != nil {
		warnReadFailed(s.logger, err)
		return map[string]struct{}{}
	}
	return known
}

func (s *SQLiteStore) Metadata(ctx context.Context) Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMetadata(ctx)
}

func (s *SQLiteStore) readMetadata(ctx context.Context) Metadata {
	var meta Metadata
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ensureContext(ctx),
			"SELECT last_exit, last_full_scan_complete, known_file_count FROM scan_metadata WHERE id = 1",
		).Scan(&meta.LastExit, &meta.LastFullScanComplete, &meta.KnownFileCount)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Metadata{}
	}
	metrics.ObserveStore("read", err)
	if err != nil {
		warnReadFailed(s.logger, err)
		return Metadata{}
	}
	return meta
}

func (s *SQLiteStore) Update(ctx context.Context, meta Metadata, known map[string]struct{}) {
	known = storableSet(s.logger, known)
	meta.KnownFileCount = len(known)
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM known_files"); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO known_files (file_name) VALUES (?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for name := range known {
			if _, err := stmt.ExecContext(ctx, name); err != nil {
				return err
			}
		}
		return upsertMetadata(ctx, tx, meta)
	})
	s.finishWrite("update", err, len(known))
}

func (s *SQLiteStore) AddKnownFile(ctx context.Context, name string) {
	if !files.StorableName(name) {
		warnUnstorableName(s.logger, name)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := -1
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO known_files (file_name) VALUES (?)", name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		count, err = syncCount(ctx, tx)
		return err
	})
	s.finishWrite("add", err, count)
}

func (s *SQLiteStore) RemoveKnownFile(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := -1
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM known_files WHERE file_name = ?", name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		count, err = syncCount(ctx, tx)
		return err
	})
	s.finishWrite("remove", err, count)
}

func (s *SQLiteStore) UpdateLastExit(ctx context.Context, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO scan_metadata (id, last_exit) VALUES (1, ?)
			 ON CONFLICT(id) DO UPDATE SET last_exit = excluded.last_exit`, at.UnixMilli())
		return err
	})
	s.finishWrite("last_exit", err, -1)
}

func (s *SQLiteStore) NeedsFullRescan(ctx context.Context, interval time.Duration) bool {
	s.mu.Lock()
	meta := s.readMetadata(ctx)
	s.mu.Unlock()
	return NeedsRescan(meta, s.now(), interval)
}

func (s *SQLiteStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM known_files"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM scan_metadata")
		return err
	})
	s.finishWrite("clear", err, 0)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) finishWrite(op string, err error, count int) {
	metrics.ObserveStore(op, err)
	if err != nil {
		warnWriteFailed(s.logger, op, err)
		return
	}
	if count >= 0 {
		metrics.KnownFiles.Set(float64(count))
	}
}

func upsertMetadata(ctx context.Context, tx *sql.Tx, meta Metadata) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scan_metadata (id, last_exit, last_full_scan_complete, known_file_count)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   last_exit = excluded.last_exit,
		   last_full_scan_complete = excluded.last_full_scan_complete,
		   known_file_count = excluded.known_file_count`,
		meta.LastExit, meta.LastFullScanComplete, meta.KnownFileCount)
	return err
}

func syncCount(ctx context.Context, tx *sql.Tx) (int, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM known_files").Scan(&count); err != nil {
		return 0, err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO scan_metadata (id, known_file_count) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET known_file_count = excluded.known_file_count`, count)
	return count, err
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
