// Package sqlitestore stores keyword documents in a SQLite database.
// Every save also appends a revision. Revision ids are monotonic ULIDs, so
// ordering by id is ordering by save.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/EgorLis/autoreply/internal/keywords"
)

// Store implements keywords.Backend on SQLite.
type Store struct {
	db *sql.DB

	mu      sync.Mutex // entropy is not safe for concurrent use
	entropy *ulid.MonotonicEntropy
}

// Revision is one saved version of a document.
type Revision struct {
	ID      string
	Name    string
	Body    []byte
	SavedAt time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name       TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS revisions (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL,
		body     BLOB NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_revisions_name ON revisions(name, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

func (s *Store) Load(name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keywords.ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

func (s *Store) Save(name string, data []byte) error {
	now := time.Now().UTC()
	ts := now.Format(time.RFC3339Nano)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, data, ts); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO revisions (id, name, body, saved_at) VALUES (?, ?, ?, ?)`,
		s.newID(now), name, data, ts); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return tx.Commit()
}

// Revisions returns up to limit revisions of name, newest first.
func (s *Store) Revisions(name string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, name, body, saved_at FROM revisions
		WHERE name = ? ORDER BY id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var ts string
		if err := rows.Scan(&r.ID, &r.Name, &r.Body, &ts); err != nil {
			return nil, err
		}
		r.SavedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep revisions per document and returns how many were deleted.
func (s *Store) Prune(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM revisions WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY name ORDER BY id DESC) AS rn
				FROM revisions
			) WHERE rn > ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
