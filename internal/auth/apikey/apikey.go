// Package apikey stores hashed API keys in PostgreSQL. Raw keys are
// generated with crypto/rand and only their SHA-256 digest is persisted, so
// a key is shown once at creation and cannot be recovered.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/fuzzygram/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
	ErrNotFound   = errors.New("api key not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS api_keys (
	id         UUID PRIMARY KEY,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ
)`

type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type Store struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-store"),
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating api_keys table: %w", err)
	}
	return nil
}

// Validate returns the active key matching rawKey.
func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	var (
		info      KeyInfo
		expiresAt sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active`,
		HashKey(rawKey),
	).Scan(&info.ID, &info.Name, &info.IsActive, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if expiresAt.Valid {
		if expiresAt.Time.Before(s.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey stores a new key and returns the raw key with its metadata.
// expiresAt may be nil for a key that never expires.
func (s *Store) CreateKey(ctx context.Context, name string, expiresAt *time.Time) (string, *KeyInfo, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", nil, err
	}
	info := &KeyInfo{
		ID:        uuid.NewString(),
		Name:      name,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expiresAt,
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	if _, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, name, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		info.ID, HashKey(rawKey), name, info.CreatedAt, expiry,
	); err != nil {
		return "", nil, fmt.Errorf("creating api key: %w", err)
	}
	s.logger.Info("api key created", "id", info.ID, "name", name)
	return rawKey, info, nil
}

// RevokeKey deactivates the key with the given ID.
func (s *Store) RevokeKey(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	s.logger.Info("api key revoked", "id", id)
	return nil
}

// ListKeys returns active keys, newest first.
func (s *Store) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, name, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := []KeyInfo{}
	for rows.Next() {
		var (
			k         KeyInfo
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the hex SHA-256 digest of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "fg_" + hex.EncodeToString(b), nil
}
