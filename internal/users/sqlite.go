package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id         TEXT PRIMARY KEY,
  sub        TEXT NOT NULL UNIQUE,
  email      TEXT NOT NULL DEFAULT '',
  name       TEXT NOT NULL DEFAULT '',
  picture    TEXT NOT NULL DEFAULT '',
  locale     TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists users in SQLite.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens the user database and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("user store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, profile *models.UserInfo) (*models.User, error) {
	if profile == nil || profile.Sub == "" {
		return nil, fmt.Errorf("profile sub is required")
	}

	now := time.Now().UTC().UnixMilli()
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, sub, email, name, picture, locale, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sub) DO UPDATE SET
		   email      = excluded.email,
		   name       = excluded.name,
		   picture    = excluded.picture,
		   locale     = excluded.locale,
		   updated_at = excluded.updated_at`,
		uuid.NewString(),
		profile.Sub,
		profile.Email,
		profile.Name,
		profile.Picture,
		profile.Locale,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return s.FindBySub(ctx, profile.Sub)
}

func (s *SQLiteStore) FindBySub(ctx context.Context, sub string) (*models.User, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, sub, email, name, picture, locale, created_at, updated_at
		 FROM users WHERE sub = ?`,
		sub,
	)

	var user models.User
	var createdAt, updatedAt int64
	err := row.Scan(&user.ID, &user.Sub, &user.Email, &user.Name, &user.Picture, &user.Locale, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	user.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &user, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
