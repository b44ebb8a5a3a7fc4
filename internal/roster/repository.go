package roster

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

// Repository handles registered_users persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a roster repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsRegistered reports whether email is on the roster. email must already be normalised.
func (r *Repository) IsRegistered(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM registered_users WHERE email = $1)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&ok)
	return ok, err
}

// List returns all registered users, newest first.
func (r *Repository) List(ctx context.Context) ([]models.RegisteredUser, error) {
	const query = `SELECT id, email, created_at FROM registered_users ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.RegisteredUser
	for rows.Next() {
		var u models.RegisteredUser
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// AddMany inserts emails, skipping ones already present, and returns how many rows were added.
func (r *Repository) AddMany(ctx context.Context, emails []string) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	const query = `INSERT INTO registered_users (email)
		SELECT DISTINCT e FROM unnest($1::text[]) AS e
		ON CONFLICT (email) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, emails)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one registered user.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registered_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Clear removes every registered user and returns how many were deleted.
func (r *Repository) Clear(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registered_users`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Count returns the roster size.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registered_users`).Scan(&n)
	return n, err
}
