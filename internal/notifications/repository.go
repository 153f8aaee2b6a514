package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/database"
)

const notificationColumns = `id, user_id, message_type, type, data, created_at`

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (id, user_id, message_type, type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if _, err := r.pool.Exec(ctx, q, n.ID, n.UserID, n.MessageType, n.Type, []byte(n.Data), n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// PatchResponse sets data.<section>.response on the newest notification of messageType owned by
// userID whose data.<section>.id is participationID. Returns uuid.Nil when nothing matched.
func (r *Repository) PatchResponse(ctx context.Context, userID uuid.UUID, messageType, section string, participationID uuid.UUID, response bool) (uuid.UUID, error) {
	const q = `UPDATE notifications SET data = jsonb_set(data, ARRAY[$4::text, 'response'], to_jsonb($5::boolean))
		WHERE id = (
			SELECT id FROM notifications
			WHERE user_id = $1 AND message_type = $2 AND data -> $4::text ->> 'id' = $3
			ORDER BY created_at DESC LIMIT 1
		)
		RETURNING id`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, q, userID, messageType, participationID.String(), section, response).Scan(&id)
	if database.IsNoRows(err) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("patch notification response: %w", err)
	}
	return id, nil
}

// List returns the user's notifications, newest first, leaving out page.Skip.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, page Page) ([]models.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 AND NOT (id = ANY($2))
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`
	skip := page.Skip
	if skip == nil {
		skip = []uuid.UUID{}
	}
	rows, err := r.pool.Query(ctx, q, userID, skip, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.MessageType, &n.Type, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Data = data
		list = append(list, n)
	}
	return list, rows.Err()
}

// Counts returns the user's total and unread notification counts.
func (r *Repository) Counts(ctx context.Context, userID uuid.UUID) (models.NotificationCounts, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE type = 'Unread') FROM notifications WHERE user_id = $1`
	var c models.NotificationCounts
	err := r.pool.QueryRow(ctx, q, userID).Scan(&c.All, &c.Unread)
	return c, err
}

// MarkRead marks the listed unread notifications owned by userID as read and returns their ids.
func (r *Repository) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	const q = `UPDATE notifications SET type = 'Read'
		WHERE user_id = $1 AND id = ANY($2) AND type = 'Unread' RETURNING id`
	return r.collectIDs(ctx, q, userID, ids)
}

// Delete removes the listed notifications owned by userID and returns their ids.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = ANY($2) RETURNING id`, userID, ids)
}

// MarkAllRead marks every unread notification of the user as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx, `UPDATE notifications SET type = 'Read' WHERE user_id = $1 AND type = 'Unread' RETURNING id`, userID)
}

// DeleteAll removes every notification of the user.
func (r *Repository) DeleteAll(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return r.collectIDs(ctx, `DELETE FROM notifications WHERE user_id = $1 RETURNING id`, userID)
}

func (r *Repository) collectIDs(ctx context.Context, q string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
