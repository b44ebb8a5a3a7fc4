package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/portal/internal/models"
)

// Repository persists the settings document in the settings table.
type Repository struct {
	pool *pgxpool.Pool
	key  string
}

// NewRepository creates a settings repository for the webinar settings row.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, key: models.SettingsKey}
}

// Load returns the raw JSON document, or nil when the row does not exist yet.
func (r *Repository) Load(ctx context.Context) ([]byte, error) {
	const q = `SELECT value FROM settings WHERE key = $1`
	var raw []byte
	err := r.pool.QueryRow(ctx, q, r.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Save upserts the JSON document.
func (r *Repository) Save(ctx context.Context, doc []byte) error {
	const q = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, r.key, string(doc))
	return err
}
