// Package handlestore persists graph handles in SQLite so they can be
// materialized later, possibly by another process.
package handlestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oy3o/graphcodec"
)

//go:embed schema.sql
var schemaSQL string

const idDomain = "graphcodec/handle/v1"

var (
	// ErrNotFound is returned when no handle has the requested id.
	ErrNotFound = errors.New("handlestore: handle not found")

	// ErrCorrupt is returned when stored bytes no longer match their id.
	ErrCorrupt = errors.New("handlestore: stored handle does not match its id")
)

// Entry describes a stored handle without loading its payload.
type Entry struct {
	ID          string    `json:"id" yaml:"id"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	RootTag     int       `json:"root_tag" yaml:"root_tag"`
	Identities  int       `json:"identities" yaml:"identities"`
	Size        int       `json:"size" yaml:"size"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Store is a content-addressed handle store backed by SQLite in WAL mode.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
// Opening an existing store is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Debug("handle store opened", "path", path)
	return &Store{db: db, now: time.Now}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ID returns the content address of a handle's binary form.
func ID(data []byte) string {
	h := sha256.New()
	h.Write([]byte(idDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Put stores h and returns its id. Storing the same handle twice is a no-op.
func (s *Store) Put(ctx context.Context, h *graphcodec.Handle) (string, error) {
	data, err := h.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal handle: %w", err)
	}
	id := ID(data)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO handles (id, fingerprint, root_tag, identities, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, h.Fingerprint().String(), h.RootTag(), h.Identities(), len(data), data, s.now().UTC().UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert handle %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("handle stored", "id", id, "size", len(data))
	}
	return id, nil
}

// Get loads the handle with the given id and checks it against the id.
func (s *Store) Get(ctx context.Context, id string) (*graphcodec.Handle, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM handles WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query handle %s: %w", id, err)
	}
	if ID(data) != id {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, id)
	}
	h, err := graphcodec.ParseHandle(data)
	if err != nil {
		return nil, fmt.Errorf("parse handle %s: %w", id, err)
	}
	return h, nil
}

// Delete removes the handle with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM handles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete handle %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete handle %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	slog.Debug("handle deleted", "id", id)
	return nil
}

// List returns every stored handle, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, root_tag, identities, size, created_at
		FROM handles
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.RootTag, &e.Identities, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	return entries, nil
}

// Bundle loads every stored handle, oldest first, as one bundle.
func (s *Store) Bundle(ctx context.Context) (*graphcodec.Bundle, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	b := graphcodec.NewBundle()
	for _, e := range entries {
		h, err := s.Get(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		b.Handles = append(b.Handles, h)
	}
	return b, nil
}
