// Package tokens persists short-lived allow tokens. Tokens are scoped to
// one intent, reusable until expiry, and never deleted on use; the store
// survives process restarts so a token issued in one invocation
// authorizes commands in the next.
package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agentsh/guardian/pkg/types"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the token database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("token db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir token db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS tokens (
			token_id TEXT PRIMARY KEY,
			intent TEXT NOT NULL,
			issued_at_unix_ns INTEGER NOT NULL,
			expires_at_unix_ns INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_intent_expiry ON tokens(intent, expires_at_unix_ns);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate tokens: %w", err)
		}
	}
	return nil
}

// Issue creates, persists, and returns a fresh token for intent with the
// given TTL. A zero or negative TTL is an input error, never clamped.
func (s *Store) Issue(ctx context.Context, intent types.Intent, ttl time.Duration) (types.AllowToken, error) {
	if ttl <= 0 {
		return types.AllowToken{}, fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	now := time.Now().UTC()
	tok := types.AllowToken{
		TokenID:    uuid.NewString(),
		Intent:     intent,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		TTLSeconds: int(ttl / time.Second),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token_id, intent, issued_at_unix_ns, expires_at_unix_ns, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		tok.TokenID, string(tok.Intent), tok.IssuedAt.UnixNano(), tok.ExpiresAt.UnixNano(), tok.TTLSeconds)
	if err != nil {
		return types.AllowToken{}, fmt.Errorf("insert token: %w", err)
	}
	return tok, nil
}

// FindValid returns the unexpired token for intent with the most
// remaining lifetime, or nil if none exists. Overlapping tokens for the
// same intent are fine; any valid one suffices.
func (s *Store) FindValid(ctx context.Context, intent types.Intent, now time.Time) (*types.AllowToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT token_id, intent, issued_at_unix_ns, expires_at_unix_ns, ttl_seconds
		 FROM tokens
		 WHERE intent = ? AND expires_at_unix_ns > ?
		 ORDER BY expires_at_unix_ns DESC
		 LIMIT 1`,
		string(intent), now.UnixNano())

	tok, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &tok, nil
}

// List returns all stored tokens, newest first.
func (s *Store) List(ctx context.Context) ([]types.AllowToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token_id, intent, issued_at_unix_ns, expires_at_unix_ns, ttl_seconds
		 FROM tokens ORDER BY issued_at_unix_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []types.AllowToken
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}

// Prune deletes tokens that expired at or before now and returns the
// count removed. Expiry itself needs no pruning to be effective; this
// only keeps the store from growing without bound.
func (s *Store) Prune(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at_unix_ns <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune tokens: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(r rowScanner) (types.AllowToken, error) {
	var tok types.AllowToken
	var intent string
	var issued, expires int64
	if err := r.Scan(&tok.TokenID, &intent, &issued, &expires, &tok.TTLSeconds); err != nil {
		return types.AllowToken{}, err
	}
	tok.Intent = types.Intent(intent)
	tok.IssuedAt = time.Unix(0, issued).UTC()
	tok.ExpiresAt = time.Unix(0, expires).UTC()
	return tok, nil
}
