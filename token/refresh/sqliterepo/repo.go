// Package sqliterepo stores refresh tokens in SQLite so grants survive restarts.
package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	zerrors "github.com/inevity/zhibot/internal/errors"
	"github.com/inevity/zhibot/token/refresh"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id                      TEXT PRIMARY KEY,
	token                   TEXT NOT NULL UNIQUE,
	user_id                 TEXT NOT NULL,
	client_id               TEXT NOT NULL DEFAULT '',
	client_name             TEXT NOT NULL DEFAULT '',
	client_icon             TEXT NOT NULL DEFAULT '',
	token_type              TEXT NOT NULL,
	access_token_expiration INTEGER NOT NULL,
	credential_id           TEXT NOT NULL DEFAULT '',
	created_at              INTEGER NOT NULL,
	last_used_at            INTEGER NOT NULL DEFAULT 0
);`

const columns = `id, token, user_id, client_id, client_name, client_icon, token_type,
	access_token_expiration, credential_id, created_at, last_used_at`

var _ refresh.Repo = (*Repo)(nil)

type Repo struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[sqliterepo Open] %w", err)
	}
	// a single connection keeps ":memory:" databases coherent and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqliterepo Open] init schema: %w", err)
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Upsert(ctx context.Context, t *refresh.StoredRefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO refresh_tokens (`+columns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	token = excluded.token,
	user_id = excluded.user_id,
	client_id = excluded.client_id,
	client_name = excluded.client_name,
	client_icon = excluded.client_icon,
	token_type = excluded.token_type,
	access_token_expiration = excluded.access_token_expiration,
	credential_id = excluded.credential_id,
	last_used_at = excluded.last_used_at`,
		t.ID, t.Token, t.UserID, t.ClientID, t.ClientName, t.ClientIcon, string(t.TokenType),
		int64(t.AccessTokenExpiration), t.CredentialID, t.CreatedAt.UnixNano(), unixNano(t.LastUsedAt))
	if err != nil {
		return fmt.Errorf("sqliterepo upsert: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("sqliterepo delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return zerrors.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, token string) (*refresh.StoredRefreshToken, error) {
	return r.queryOne(ctx, `SELECT `+columns+` FROM refresh_tokens WHERE token = ?`, token)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*refresh.StoredRefreshToken, error) {
	return r.queryOne(ctx, `SELECT `+columns+` FROM refresh_tokens WHERE id = ?`, id)
}

func (r *Repo) List(ctx context.Context, offset, limit int) ([]*refresh.StoredRefreshToken, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM refresh_tokens ORDER BY created_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqliterepo list: %w", err)
	}
	defer rows.Close()

	var out []*refresh.StoredRefreshToken
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) queryOne(ctx context.Context, query string, arg string) (*refresh.StoredRefreshToken, error) {
	t, err := scan(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, zerrors.ErrNotFound
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*refresh.StoredRefreshToken, error) {
	var (
		t                   refresh.StoredRefreshToken
		tokenType           string
		expiration          int64
		createdAt, lastUsed int64
	)
	if err := s.Scan(&t.ID, &t.Token, &t.UserID, &t.ClientID, &t.ClientName, &t.ClientIcon, &tokenType,
		&expiration, &t.CredentialID, &createdAt, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqliterepo scan: %w", err)
	}
	t.TokenType = refresh.TokenType(tokenType)
	t.AccessTokenExpiration = time.Duration(expiration)
	t.CreatedAt = time.Unix(0, createdAt)
	if lastUsed != 0 {
		t.LastUsedAt = time.Unix(0, lastUsed)
	}
	return &t, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
