package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/database"
)

const eventColumns = `e.id, e.author_id, e.name, e.description, e.place, e.type, e.gender, e.need_ball, e.need_form, e.forms,
	e.contact_number, e.price, e.price_description, e.start_at, e.duration_minutes, e.amount_members, e.privacy, e.status,
	e.created_at, e.updated_at,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.added_at) FROM event_members m WHERE m.event_id = e.id), '{}'),
	COALESCE((SELECT array_agg(f.user_id ORDER BY f.added_at) FROM event_fans f WHERE f.event_id = e.id), '{}'),
	COALESCE((SELECT array_agg(b.user_id ORDER BY b.added_at) FROM event_black_list b WHERE b.event_id = e.id), '{}')`

const participationColumns = `id, kind, event_id, sender_id, recipient_id, status, created_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Repository handles event, roster and participation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithEvent locks the event row with SELECT ... FOR UPDATE and runs fn in the same transaction.
func (r *Repository) WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&id); err != nil {
			if database.IsNoRows(err) {
				return ErrEventNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}
		e, err := getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		return fn(&pgTx{tx: tx, event: e})
	})
}

// CreateEvent inserts the event and runs fn in the same transaction.
func (r *Repository) CreateEvent(ctx context.Context, e *models.Event, fn func(tx Tx) error) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO events (author_id, name, description, place, type, gender, need_ball, need_form, forms,
			contact_number, price, price_description, start_at, duration_minutes, amount_members, privacy, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, q, e.AuthorID, e.Name, e.Description, e.Place, e.Type, e.Gender, e.NeedBall, e.NeedForm, e.Forms,
			e.ContactNumber, e.Price, e.PriceDescription, e.StartAt, e.DurationMinutes, e.AmountMembers, e.Privacy, e.Status).
			Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		e.Members, e.Fans, e.BlackList = []uuid.UUID{}, []uuid.UUID{}, []uuid.UUID{}
		return fn(&pgTx{tx: tx, event: e})
	})
}

// GetEvent returns an event with its roster.
func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return getEvent(ctx, r.pool, id)
}

// ListEvents returns events matching the filter, newest first.
func (r *Repository) ListEvents(ctx context.Context, f ListFilter) ([]models.Event, error) {
	var conds []string
	var args []interface{}
	if f.AuthorID != uuid.Nil {
		args = append(args, f.AuthorID)
		conds = append(conds, fmt.Sprintf("e.author_id = $%d", len(args)))
	}
	if f.ParticipantID != uuid.Nil {
		args = append(args, f.ParticipantID)
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(EXISTS (SELECT 1 FROM event_members m WHERE m.event_id = e.id AND m.user_id = $%d)
			OR EXISTS (SELECT 1 FROM event_fans f WHERE f.event_id = e.id AND f.user_id = $%d))`, n, n))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("e.status = $%d", len(args)))
	}
	q := `SELECT ` + eventColumns + ` FROM events e`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	rows, err := r.pool.Query(ctx, q+" ORDER BY e.created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// GetParticipation returns an invite or request by id.
func (r *Repository) GetParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	q := `SELECT ` + participationColumns + ` FROM participations WHERE id = $1`
	p, err := scanParticipation(r.pool.QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

// ListWaiting returns open participations of kind addressed to the recipient.
func (r *Repository) ListWaiting(ctx context.Context, recipientID uuid.UUID, kind models.ParticipationKind) ([]models.Participation, error) {
	q := `SELECT ` + participationColumns + ` FROM participations
		WHERE recipient_id = $1 AND kind = $2 AND status = 'Waiting' ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, recipientID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// ListUnfinishedEventIDs returns the ids the lifecycle sweep must look at.
func (r *Repository) ListUnfinishedEventIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM events WHERE status <> 'Finished' ORDER BY start_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getEvent(ctx context.Context, q querier, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
	if database.IsNoRows(err) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.AuthorID, &e.Name, &e.Description, &e.Place, &e.Type, &e.Gender, &e.NeedBall, &e.NeedForm, &e.Forms,
		&e.ContactNumber, &e.Price, &e.PriceDescription, &e.StartAt, &e.DurationMinutes, &e.AmountMembers, &e.Privacy, &e.Status,
		&e.CreatedAt, &e.UpdatedAt, &e.Members, &e.Fans, &e.BlackList)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanParticipation(row pgx.Row) (*models.Participation, error) {
	var p models.Participation
	if err := row.Scan(&p.ID, &p.Kind, &p.EventID, &p.SenderID, &p.RecipientID, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// pgTx is a Tx over one locked event row.
type pgTx struct {
	tx    pgx.Tx
	event *models.Event
}

func (t *pgTx) Event() *models.Event { return t.event }

func (t *pgTx) AddMember(ctx context.Context, userID uuid.UUID) error {
	const q = `INSERT INTO event_members (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := t.tx.Exec(ctx, q, t.event.ID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if !t.event.IsMember(userID) {
		t.event.Members = append(t.event.Members, userID)
	}
	return nil
}

func (t *pgTx) RemoveMember(ctx context.Context, userID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM event_members WHERE event_id = $1 AND user_id = $2`, t.event.ID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	t.event.Members = without(t.event.Members, userID)
	return nil
}

func (t *pgTx) AddFan(ctx context.Context, userID uuid.UUID) error {
	const q = `INSERT INTO event_fans (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := t.tx.Exec(ctx, q, t.event.ID, userID); err != nil {
		return fmt.Errorf("add fan: %w", err)
	}
	if !t.event.IsFan(userID) {
		t.event.Fans = append(t.event.Fans, userID)
	}
	return nil
}

func (t *pgTx) RemoveFan(ctx context.Context, userID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM event_fans WHERE event_id = $1 AND user_id = $2`, t.event.ID, userID); err != nil {
		return fmt.Errorf("remove fan: %w", err)
	}
	t.event.Fans = without(t.event.Fans, userID)
	return nil
}

func (t *pgTx) AddToBlackList(ctx context.Context, userID uuid.UUID) error {
	const q = `INSERT INTO event_black_list (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := t.tx.Exec(ctx, q, t.event.ID, userID); err != nil {
		return fmt.Errorf("blacklist: %w", err)
	}
	if !t.event.IsBlacklisted(userID) {
		t.event.BlackList = append(t.event.BlackList, userID)
	}
	return nil
}

func (t *pgTx) CreateParticipation(ctx context.Context, p *models.Participation) error {
	const q = `INSERT INTO participations (kind, event_id, sender_id, recipient_id, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	if err := t.tx.QueryRow(ctx, q, p.Kind, p.EventID, p.SenderID, p.RecipientID, p.Status).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	return nil
}

func (t *pgTx) HasParticipation(ctx context.Context, kind models.ParticipationKind, senderID, recipientID uuid.UUID, statuses ...models.ParticipationStatus) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM participations
		WHERE event_id = $1 AND kind = $2
		AND ($3::uuid IS NULL OR sender_id = $3)
		AND ($4::uuid IS NULL OR recipient_id = $4)
		AND status = ANY($5))`
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}
	var exists bool
	err := t.tx.QueryRow(ctx, q, t.event.ID, kind, nullableID(senderID), nullableID(recipientID), states).Scan(&exists)
	return exists, err
}

func (t *pgTx) LockParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	q := `SELECT ` + participationColumns + ` FROM participations WHERE id = $1 AND event_id = $2 FOR UPDATE`
	p, err := scanParticipation(t.tx.QueryRow(ctx, q, id, t.event.ID))
	if database.IsNoRows(err) {
		return nil, ErrParticipationNotFound
	}
	return p, err
}

func (t *pgTx) SetParticipationStatus(ctx context.Context, id uuid.UUID, status models.ParticipationStatus) error {
	const q = `UPDATE participations SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'Waiting'`
	tag, err := t.tx.Exec(ctx, q, status, id)
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET name = $1, description = $2, place = $3, type = $4, gender = $5, need_ball = $6,
		need_form = $7, forms = $8, contact_number = $9, price = $10, price_description = $11, start_at = $12,
		duration_minutes = $13, amount_members = $14, privacy = $15, updated_at = NOW()
		WHERE id = $16 RETURNING updated_at`
	err := t.tx.QueryRow(ctx, q, e.Name, e.Description, e.Place, e.Type, e.Gender, e.NeedBall,
		e.NeedForm, e.Forms, e.ContactNumber, e.Price, e.PriceDescription, e.StartAt,
		e.DurationMinutes, e.AmountMembers, e.Privacy, t.event.ID).Scan(&e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	t.event = e
	return nil
}

func (t *pgTx) SetStatus(ctx context.Context, status models.EventStatus) error {
	if !t.event.Status.CanAdvanceTo(status) {
		return fmt.Errorf("event %s: status %s cannot move to %s", t.event.ID, t.event.Status, status)
	}
	if _, err := t.tx.Exec(ctx, `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, t.event.ID); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	t.event.Status = status
	return nil
}

func (t *pgTx) Delete(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, t.event.ID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteOpenParticipations(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM participations WHERE event_id = $1 AND status = 'Waiting'`, t.event.ID)
	if err != nil {
		return 0, fmt.Errorf("delete open participations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) FlagNotificationsFinished(ctx context.Context) (int64, error) {
	const q = `UPDATE notifications SET data = jsonb_set(data, '{event,finished}', 'true'::jsonb)
		WHERE data -> 'event' ->> 'id' = $1 AND COALESCE((data -> 'event' ->> 'finished')::boolean, false) = false`
	tag, err := t.tx.Exec(ctx, q, t.event.ID.String())
	if err != nil {
		return 0, fmt.Errorf("flag notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
