package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested order does not exist.
var ErrNotFound = errors.New("order: not found")

// Repository provides read access to order summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches an order summary by its primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Summary, error) {
	const query = `
		SELECT id, title, amount, status, deadline, created_at
		FROM orders
		WHERE id = $1
	`

	var summary Summary
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&summary.ID,
		&summary.Title,
		&summary.Amount,
		&summary.Status,
		&summary.Deadline,
		&summary.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, fmt.Errorf("order: query by id: %w", err)
	}

	return summary, nil
}

// ListRecent fetches up to limit orders ordered by creation time.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, title, amount, status, deadline, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("order: list recent: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0, limit)
	for rows.Next() {
		var summary Summary
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.Amount, &summary.Status, &summary.Deadline, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("order: scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: iterate summaries: %w", err)
	}

	return summaries, nil
}
