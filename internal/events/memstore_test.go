package events

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/models"
)

// memStore is a Store whose transactions are serialized by one mutex and
// applied only when fn returns nil.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	events  map[uuid.UUID]*models.Event
	parts   map[uuid.UUID]models.Participation
	flagged map[uuid.UUID]int
	failOn  map[uuid.UUID]error
}

func newMemStore() *memStore {
	return &memStore{
		events:  make(map[uuid.UUID]*models.Event),
		parts:   make(map[uuid.UUID]models.Participation),
		flagged: make(map[uuid.UUID]int),
		failOn:  make(map[uuid.UUID]error),
	}
}

func (s *memStore) tick() time.Time {
	s.seq++
	return time.Unix(1_700_000_000+s.seq, 0).UTC()
}

func (s *memStore) begin(e *models.Event) *memTx {
	parts := make(map[uuid.UUID]models.Participation, len(s.parts))
	for k, v := range s.parts {
		parts[k] = v
	}
	return &memTx{store: s, event: e.Clone(), parts: parts}
}

func (s *memStore) commit(tx *memTx) {
	if tx.deleted {
		delete(s.events, tx.event.ID)
	} else {
		s.events[tx.event.ID] = tx.event
	}
	s.parts = tx.parts
	s.flagged[tx.event.ID] += tx.flagged
}

func (s *memStore) WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[eventID]; err != nil {
		return err
	}
	e, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	tx := s.begin(e)
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *memStore) CreateEvent(ctx context.Context, e *models.Event, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = s.tick()
	e.UpdatedAt = e.CreatedAt
	tx := s.begin(e)
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	*e = *tx.event.Clone()
	return nil
}

func (s *memStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e.Clone(), nil
}

func (s *memStore) ListEvents(ctx context.Context, f ListFilter) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.events {
		if f.AuthorID != uuid.Nil && e.AuthorID != f.AuthorID {
			continue
		}
		if f.ParticipantID != uuid.Nil && !e.IsMember(f.ParticipantID) && !e.IsFan(f.ParticipantID) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) GetParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	if !ok {
		return nil, ErrParticipationNotFound
	}
	return &p, nil
}

func (s *memStore) ListWaiting(ctx context.Context, recipientID uuid.UUID, kind models.ParticipationKind) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, p := range s.parts {
		if p.RecipientID == recipientID && p.Kind == kind && p.IsOpen() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListUnfinishedEventIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Event
	for _, e := range s.events {
		if e.Status != models.EventFinished {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })
	ids := make([]uuid.UUID, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids, nil
}

// seed stores an event as-is, bypassing validation.
func (s *memStore) seed(e *models.Event) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = s.tick()
	s.events[e.ID] = e.Clone()
	return e
}

func (s *memStore) event(id uuid.UUID) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		return e.Clone()
	}
	return nil
}

func (s *memStore) participation(id uuid.UUID) models.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts[id]
}

func (s *memStore) participations(eventID uuid.UUID) []models.Participation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Participation
	for _, p := range s.parts {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out
}

type memTx struct {
	store   *memStore
	event   *models.Event
	parts   map[uuid.UUID]models.Participation
	deleted bool
	flagged int
}

func (t *memTx) Event() *models.Event { return t.event }

func (t *memTx) AddMember(ctx context.Context, userID uuid.UUID) error {
	if !t.event.IsMember(userID) {
		t.event.Members = append(t.event.Members, userID)
	}
	return nil
}

func (t *memTx) RemoveMember(ctx context.Context, userID uuid.UUID) error {
	t.event.Members = without(t.event.Members, userID)
	return nil
}

func (t *memTx) AddFan(ctx context.Context, userID uuid.UUID) error {
	if !t.event.IsFan(userID) {
		t.event.Fans = append(t.event.Fans, userID)
	}
	return nil
}

func (t *memTx) RemoveFan(ctx context.Context, userID uuid.UUID) error {
	t.event.Fans = without(t.event.Fans, userID)
	return nil
}

func (t *memTx) AddToBlackList(ctx context.Context, userID uuid.UUID) error {
	if !t.event.IsBlacklisted(userID) {
		t.event.BlackList = append(t.event.BlackList, userID)
	}
	return nil
}

func (t *memTx) CreateParticipation(ctx context.Context, p *models.Participation) error {
	p.ID = uuid.New()
	p.CreatedAt = t.store.tick()
	t.parts[p.ID] = *p
	return nil
}

func (t *memTx) HasParticipation(ctx context.Context, kind models.ParticipationKind, senderID, recipientID uuid.UUID, statuses ...models.ParticipationStatus) (bool, error) {
	for _, p := range t.parts {
		if p.EventID != t.event.ID || p.Kind != kind {
			continue
		}
		if senderID != uuid.Nil && p.SenderID != senderID {
			continue
		}
		if recipientID != uuid.Nil && p.RecipientID != recipientID {
			continue
		}
		for _, st := range statuses {
			if p.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memTx) LockParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error) {
	p, ok := t.parts[id]
	if !ok || p.EventID != t.event.ID {
		return nil, ErrParticipationNotFound
	}
	return &p, nil
}

func (t *memTx) SetParticipationStatus(ctx context.Context, id uuid.UUID, status models.ParticipationStatus) error {
	p, ok := t.parts[id]
	if !ok || !p.IsOpen() {
		return ErrAlreadyResolved
	}
	p.Status = status
	t.parts[id] = p
	return nil
}

func (t *memTx) Update(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = t.store.tick()
	t.event = e.Clone()
	return nil
}

func (t *memTx) SetStatus(ctx context.Context, status models.EventStatus) error {
	if !t.event.Status.CanAdvanceTo(status) {
		return errors.New("status cannot move backwards")
	}
	t.event.Status = status
	return nil
}

func (t *memTx) Delete(ctx context.Context) error {
	t.deleted = true
	return nil
}

func (t *memTx) DeleteOpenParticipations(ctx context.Context) (int64, error) {
	var n int64
	for id, p := range t.parts {
		if p.EventID == t.event.ID && p.IsOpen() {
			delete(t.parts, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) FlagNotificationsFinished(ctx context.Context) (int64, error) {
	t.flagged++
	return 1, nil
}

// recPublisher records published triggers.
type recPublisher struct {
	mu       sync.Mutex
	triggers []fanout.Trigger
}

func (p *recPublisher) Publish(ctx context.Context, t fanout.Trigger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers = append(p.triggers, t)
}

func (p *recPublisher) kinds() []fanout.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]fanout.Kind, len(p.triggers))
	for i, t := range p.triggers {
		out[i] = t.Kind
	}
	return out
}

func (p *recPublisher) count(kind fanout.Kind) int {
	n := 0
	for _, k := range p.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (p *recPublisher) last() fanout.Trigger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers[len(p.triggers)-1]
}

func (p *recPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers = nil
}

// memUsers is a Directory over a fixed set of ids.
type memUsers map[uuid.UUID]bool

func (u memUsers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return u[id], nil
}

func (u memUsers) add(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		u[ids[i]] = true
	}
	return ids
}
