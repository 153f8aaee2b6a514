package reviews

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blanball/backend/internal/models"
)

// Repository handles review persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a review repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a review.
func (r *Repository) Create(ctx context.Context, rv *models.Review) error {
	const q = `INSERT INTO reviews (author_id, user_id, text, stars) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, rv.AuthorID, rv.UserID, rv.Text, rv.Stars).Scan(&rv.ID, &rv.CreatedAt); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// ListAbout returns reviews left for userID, newest first.
func (r *Repository) ListAbout(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	const q = `SELECT id, author_id, user_id, text, stars, created_at FROM reviews WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Review
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.AuthorID, &rv.UserID, &rv.Text, &rv.Stars, &rv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rv)
	}
	return list, rows.Err()
}

// Rating returns the mean stars left for userID, or 0 without reviews.
func (r *Repository) Rating(ctx context.Context, userID uuid.UUID) (float64, error) {
	var avg float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(AVG(stars), 0)::float8 FROM reviews WHERE user_id = $1`, userID).Scan(&avg)
	return avg, err
}
