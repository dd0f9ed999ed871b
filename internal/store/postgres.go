package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultArtifactName = "site-config"

// PostgresBackend keeps the artifact as a single row. Each write is one upsert.
type PostgresBackend struct {
	db   *sql.DB
	name string
}

func NewPostgresBackend(db *sql.DB, name string) *PostgresBackend {
	if name == "" {
		name = defaultArtifactName
	}
	return &PostgresBackend{db: db, name: name}
}

func (b *PostgresBackend) ReadArtifact(ctx context.Context) ([]byte, error) {
	var body string
	err := b.db.QueryRowContext(ctx, `SELECT body FROM site_artifacts WHERE name=$1`, b.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: row %q", ErrNotFound, b.name)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return []byte(body), nil
}

func (b *PostgresBackend) WriteArtifact(ctx context.Context, artifact []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO site_artifacts (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`, b.name, string(artifact))
	if err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
