// Package history persists finished runs in a SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

const currentSchemaVersion = 2

// Store keeps run history. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	slog.Info("history: opening database", "path", path)

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a second pooled connection would see a different :memory: database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("seed schema_version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema_version: %w", err)
	}

	for version < currentSchemaVersion {
		next := version + 1
		if err := s.migrate(next); err != nil {
			return fmt.Errorf("migrate to v%d: %w", next, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, next); err != nil {
			return fmt.Errorf("bump schema_version: %w", err)
		}
		slog.Debug("history: migrated schema", "version", next)
		version = next
	}
	return nil
}

func (s *Store) migrate(version int) error {
	switch version {
	case 1:
		_, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS runs (
				id        TEXT PRIMARY KEY,
				target    TEXT NOT NULL,
				transport TEXT NOT NULL,
				filter    TEXT NOT NULL DEFAULT '',
				started   INTEGER NOT NULL,
				finished  INTEGER NOT NULL,
				failed    INTEGER NOT NULL
			);
			CREATE TABLE IF NOT EXISTS cases (
				run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				seq      INTEGER NOT NULL,
				name     TEXT NOT NULL,
				passed   INTEGER NOT NULL,
				error    TEXT NOT NULL DEFAULT '',
				calls    TEXT NOT NULL,
				started  INTEGER NOT NULL,
				finished INTEGER NOT NULL,
				PRIMARY KEY (run_id, seq)
			);
			CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);`)
		return err
	case 2:
		_, err := s.db.Exec(`ALTER TABLE cases ADD COLUMN console TEXT NOT NULL DEFAULT '[]'`)
		return err
	}
	return fmt.Errorf("unknown schema version %d", version)
}

// SaveRun stores a finished run, replacing any earlier copy with the same ID.
func (s *Store) SaveRun(run models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("delete old run: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO runs (id, target, transport, filter, started, finished, failed) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target, run.Transport, run.Filter,
		run.Started.UnixNano(), run.Finished.UnixNano(), run.Failed(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, c := range run.Cases {
		calls, err := json.Marshal(c.Calls)
		if err != nil {
			return fmt.Errorf("encode calls: %w", err)
		}
		console, err := json.Marshal(c.Console)
		if err != nil {
			return fmt.Errorf("encode console: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO cases (run_id, seq, name, passed, error, calls, console, started, finished) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, c.Name, c.Passed, c.Error, string(calls), string(console),
			c.Started.UnixNano(), c.Finished.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert case %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// GetRun returns the full run with its cases.
func (s *Store) GetRun(id string) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run               models.Run
		started, finished int64
		failed            int
	)
	err := s.db.QueryRow(
		`SELECT id, target, transport, filter, started, finished, failed FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Target, &run.Transport, &run.Filter, &started, &finished, &failed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, ErrRunNotFound
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("query run: %w", err)
	}
	run.Started = time.Unix(0, started)
	run.Finished = time.Unix(0, finished)

	rows, err := s.db.Query(
		`SELECT name, passed, error, calls, console, started, finished FROM cases WHERE run_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return models.Run{}, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c              models.CaseResult
			calls, console string
		)
		if err := rows.Scan(&c.Name, &c.Passed, &c.Error, &calls, &console, &started, &finished); err != nil {
			return models.Run{}, fmt.Errorf("scan case: %w", err)
		}
		if err := json.Unmarshal([]byte(calls), &c.Calls); err != nil {
			return models.Run{}, fmt.Errorf("decode calls: %w", err)
		}
		if err := json.Unmarshal([]byte(console), &c.Console); err != nil {
			return models.Run{}, fmt.Errorf("decode console: %w", err)
		}
		c.Started = time.Unix(0, started)
		c.Finished = time.Unix(0, finished)
		run.Cases = append(run.Cases, c)
	}
	return run, rows.Err()
}

// ListRuns returns summaries, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT r.id, r.target, r.started, r.finished, r.failed, COUNT(c.seq)
		FROM runs r LEFT JOIN cases c ON c.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []models.RunSummary{}
	for rows.Next() {
		var (
			sum               models.RunSummary
			started, finished int64
		)
		if err := rows.Scan(&sum.ID, &sum.Target, &started, &finished, &sum.Failed, &sum.Cases); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.Started = time.Unix(0, started)
		sum.Finished = time.Unix(0, finished)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(n), nil
}
