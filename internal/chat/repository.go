package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/portal/internal/apperr"
	"github.com/aura-webinar/portal/internal/models"
)

const messageColumns = `id, email, content, is_pinned, is_deleted, created_at`

// visibleMessages is the source of every read path; soft-deleted rows never leave the store.
const visibleMessages = `FROM chat_messages WHERE NOT is_deleted`

// pinLockKey serialises pin transactions across connections.
const pinLockKey int64 = 0x63686174_70696e

// Repository persists chat messages in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMessage(row pgx.Row) (models.ChatMessage, error) {
	var m models.ChatMessage
	err := row.Scan(&m.ID, &m.Email, &m.Content, &m.IsPinned, &m.IsDeleted, &m.CreatedAt)
	return m, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

// ListRecent returns the newest limit visible messages in ascending (created_at, id) order.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` ` + visibleMessages + `
			ORDER BY created_at DESC, id DESC LIMIT $1
		) recent ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Pinned returns the pinned visible message, or nil.
func (r *Repository) Pinned(ctx context.Context) (*models.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` ` + visibleMessages + ` AND is_pinned
		ORDER BY created_at DESC, id DESC LIMIT 1`
	m, err := scanMessage(r.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LastSent returns the creation time of the sender's newest visible message within window of the
// database clock, or nil, together with that clock reading.
func (r *Repository) LastSent(ctx context.Context, email string, window time.Duration) (*time.Time, time.Time, error) {
	query := `SELECT clk.ts, (
			SELECT created_at ` + visibleMessages + ` AND email = $1
				AND created_at > clk.ts - make_interval(secs => $2)
			ORDER BY created_at DESC LIMIT 1)
		FROM (SELECT clock_timestamp() AS ts) clk`
	var (
		now  time.Time
		last *time.Time
	)
	if err := r.pool.QueryRow(ctx, query, email, window.Seconds()).Scan(&now, &last); err != nil {
		return nil, time.Time{}, err
	}
	return last, now, nil
}

// Create inserts a message and returns the stored row. created_at comes from the column default
// (clock_timestamp()), so timestamps follow insertion order.
func (r *Repository) Create(ctx context.Context, email, content string) (models.ChatMessage, error) {
	query := `INSERT INTO chat_messages (email, content) VALUES ($1, $2)
		RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, email, content))
}

// Pin makes id the only pinned message. It returns the pinned row and any rows that lost the pin.
// Both steps commit together, so readers never observe zero or two pinned messages.
func (r *Repository) Pin(ctx context.Context, id int64) (models.ChatMessage, []models.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.ChatMessage{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pinLockKey); err != nil {
		return models.ChatMessage{}, nil, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT TRUE `+visibleMessages+` AND id = $1 FOR UPDATE`, id).Scan(&exists)
	if err != nil {
		return models.ChatMessage{}, nil, notFound(err)
	}

	rows, err := tx.Query(ctx, `UPDATE chat_messages SET is_pinned = FALSE
		WHERE is_pinned AND id <> $1 RETURNING `+messageColumns, id)
	if err != nil {
		return models.ChatMessage{}, nil, err
	}
	var previous []models.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return models.ChatMessage{}, nil, err
		}
		if !m.IsDeleted {
			previous = append(previous, m)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.ChatMessage{}, nil, err
	}

	pinned, err := scanMessage(tx.QueryRow(ctx, `UPDATE chat_messages SET is_pinned = TRUE
		WHERE id = $1 AND NOT is_deleted RETURNING `+messageColumns, id))
	if err != nil {
		return models.ChatMessage{}, nil, notFound(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.ChatMessage{}, nil, err
	}
	return pinned, previous, nil
}

// Unpin clears the pin flag on id.
func (r *Repository) Unpin(ctx context.Context, id int64) (models.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `UPDATE chat_messages SET is_pinned = FALSE
		WHERE id = $1 AND NOT is_deleted RETURNING `+messageColumns, id))
	return m, notFound(err)
}

// SoftDelete hides id from every read path. A deleted message also loses its pin.
func (r *Repository) SoftDelete(ctx context.Context, id int64) (models.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `UPDATE chat_messages SET is_deleted = TRUE, is_pinned = FALSE
		WHERE id = $1 AND NOT is_deleted RETURNING `+messageColumns, id))
	return m, notFound(err)
}
