// Package users is the thin identity directory the event and notification flows read from.
package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/apperror"
	"github.com/blanball/backend/pkg/database"
)

// ErrNotFound is returned when no user has the given id or email.
var ErrNotFound = apperror.NotFound("user")

const userColumns = `u.id, u.email, u.phone, u.role, u.is_online, u.created_at,
	COALESCE(p.name, ''), COALESCE(p.last_name, ''), p.birthday, p.age`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user with profile by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users u LEFT JOIN profiles p ON p.user_id = u.id WHERE u.id = $1`, id)
}

// GetByEmail returns a user with profile by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users u LEFT JOIN profiles p ON p.user_id = u.id WHERE u.email = $1`, email)
}

func (r *Repository) get(ctx context.Context, q string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.Phone, &u.Role, &u.IsOnline, &u.CreatedAt,
		&u.Profile.Name, &u.Profile.LastName, &u.Profile.Birthday, &u.Profile.Age)
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Exists reports whether a user with id exists.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// SetOnline records whether the user has a live push connection.
func (r *Repository) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_online = $1, updated_at = NOW() WHERE id = $2`, online, id)
	return err
}

// IncrementBirthdayAges recomputes the age of every profile whose birthday falls on today's
// month and day. age_updated_on makes a second run on the same day a no-op.
func (r *Repository) IncrementBirthdayAges(ctx context.Context, today time.Time) (int64, error) {
	const q = `UPDATE profiles
		SET age = EXTRACT(YEAR FROM age($1::date, birthday))::smallint, age_updated_on = $1::date
		WHERE birthday IS NOT NULL
		AND EXTRACT(MONTH FROM birthday) = EXTRACT(MONTH FROM $1::date)
		AND EXTRACT(DAY FROM birthday) = EXTRACT(DAY FROM $1::date)
		AND (age_updated_on IS NULL OR age_updated_on < $1::date)`
	tag, err := r.pool.Exec(ctx, q, today)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredCodes removes verification codes that expired before now.
func (r *Repository) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
