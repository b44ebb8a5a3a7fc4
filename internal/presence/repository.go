package presence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores one active_sessions row per participant.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a presence repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Touch upserts the participant's last ping.
func (r *Repository) Touch(ctx context.Context, email string, at time.Time) error {
	const q = `INSERT INTO active_sessions (email, last_ping) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET last_ping = EXCLUDED.last_ping`
	_, err := r.pool.Exec(ctx, q, email, at)
	return err
}

// Remove deletes the participant's row. Missing rows are not an error.
func (r *Repository) Remove(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM active_sessions WHERE email = $1`, email)
	return err
}

// CountSince counts rows pinged strictly after since.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM active_sessions WHERE last_ping > $1`, since).Scan(&n)
	return n, err
}

// DeleteBefore removes rows last pinged at or before cutoff.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM active_sessions WHERE last_ping <= $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
