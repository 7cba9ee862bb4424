package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStorage stores entries in the client_state table using pgx
// directly (no ORM).
type PostgresStorage struct {
	db *pgxpool.Pool
}

// NewPostgresStorage creates the table if needed. It takes ownership of db.
func NewPostgresStorage(ctx context.Context, db *pgxpool.Pool) (*PostgresStorage, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create client_state table: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKeys(key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM client_state WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStorage) Set(ctx context.Context, key, value string) error {
	return s.SetAll(ctx, map[string]string{key: value})
}

// SetAll upserts every entry inside one transaction so the token and the
// user record never land separately.
func (s *PostgresStorage) SetAll(ctx context.Context, entries map[string]string) (err error) {
	if err := checkKeys(entryKeys(entries)...); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for k, v := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			k, v,
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Delete(ctx context.Context, keys ...string) error {
	if err := checkKeys(keys...); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM client_state WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete %v: %w", keys, err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.db.Close()
	return nil
}
