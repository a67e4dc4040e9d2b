// Package entrystore keeps the durable log of accepted entries in PostgreSQL.
// The index itself lives only in memory; on startup it is rebuilt by
// replaying this log.
package entrystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id              BIGSERIAL PRIMARY KEY,
	key             TEXT NOT NULL,
	text            TEXT NOT NULL,
	bounded         BOOLEAN NOT NULL DEFAULT FALSE,
	idempotency_key TEXT UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Entry is one accepted insert.
type Entry struct {
	ID             int64
	Key            string
	Text           string
	Bounded        bool
	IdempotencyKey string
	CreatedAt      time.Time
}

// Store reads and writes the entries table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "entrystore"),
	}
}

// Migrate creates the entries table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating entries table: %w", err)
	}
	return nil
}

// Save appends e and fills in its ID and CreatedAt. When e carries an
// idempotency key that is already stored, e is overwritten with the stored
// row and duplicate is true.
func (s *Store) Save(ctx context.Context, e *Entry) (duplicate bool, err error) {
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO entries (key, text, bounded, idempotency_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id, created_at`,
			e.Key, e.Text, e.Bounded, nullableString(e.IdempotencyKey),
		).Scan(&e.ID, &e.CreatedAt)
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		duplicate = true
		return tx.QueryRowContext(ctx,
			`SELECT id, key, text, bounded, created_at FROM entries WHERE idempotency_key = $1`,
			e.IdempotencyKey,
		).Scan(&e.ID, &e.Key, &e.Text, &e.Bounded, &e.CreatedAt)
	})
	if err != nil {
		return false, fmt.Errorf("saving entry %q: %w", e.Key, err)
	}
	if duplicate {
		s.logger.Info("duplicate entry detected",
			"idempotency_key", e.IdempotencyKey,
			"existing_id", e.ID,
		)
	}
	return duplicate, nil
}

// Replay streams every stored entry to fn in id order and returns how many
// were delivered. It stops at the first error from fn.
func (s *Store) Replay(ctx context.Context, fn func(Entry) error) (int, error) {
	start := time.Now()
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, key, text, bounded, COALESCE(idempotency_key, ''), created_at FROM entries ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Key, &e.Text, &e.Bounded, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return n, fmt.Errorf("scanning entry: %w", err)
		}
		if err := fn(e); err != nil {
			return n, fmt.Errorf("replaying entry %d: %w", e.ID, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterating entries: %w", err)
	}
	s.logger.Info("entry log replayed", "entries", n, "duration", time.Since(start))
	return n, nil
}

// nullableString stores "" as NULL so that entries without an idempotency key
// never conflict with each other.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
