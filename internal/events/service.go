package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/apperror"
)

// Publisher receives domain triggers after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, t fanout.Trigger)
}

// Directory answers whether a user exists.
type Directory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service is the membership state machine plus event CRUD.
// Every mutation runs in one transaction holding the event row lock; notifications go out after commit.
type Service struct {
	store   Store
	pub     Publisher
	users   Directory
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewService creates the events service.
func NewService(store Store, pub Publisher, users Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, pub: pub, users: users, logger: logger, nowFunc: time.Now}
}

// JoinResult tells whether the user joined or a request went to the author.
type JoinResult struct {
	Joined  bool                  `json:"joined"`
	Request *models.Participation `json:"request,omitempty"`
}

type emitFunc func(kind fanout.Kind, t fanout.Trigger)

// mutate runs fn under the event lock and publishes collected triggers once the transaction commits.
func (s *Service) mutate(ctx context.Context, op string, eventID uuid.UUID, fn func(tx Tx, emit emitFunc) error) error {
	var triggers []fanout.Trigger
	err := s.store.WithEvent(ctx, eventID, func(tx Tx) error {
		triggers = triggers[:0]
		return fn(tx, collect(tx, &triggers))
	})
	s.record(op, err)
	if err != nil {
		return err
	}
	s.publish(ctx, triggers)
	return nil
}

func collect(tx Tx, triggers *[]fanout.Trigger) emitFunc {
	return func(kind fanout.Kind, t fanout.Trigger) {
		t.Kind = kind
		t.Event = tx.Event().Clone()
		*triggers = append(*triggers, t)
	}
}

func (s *Service) publish(ctx context.Context, triggers []fanout.Trigger) {
	if s.pub == nil {
		return
	}
	for _, t := range triggers {
		s.pub.Publish(ctx, t)
	}
}

func (s *Service) record(op string, err error) {
	result := "ok"
	if err != nil {
		if e, ok := apperror.As(err); ok {
			result = e.Code
		} else {
			result = "error"
		}
	}
	metrics.MembershipOps.WithLabelValues(op, result).Inc()
}

// Create validates and stores a new event authored by authorID, inviting the listed users
// in the same transaction. Any invite failure rejects the whole creation.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in CreateInput) (*models.Event, error) {
	if err := in.validate(s.nowFunc(), nil); err != nil {
		return nil, err
	}
	for _, id := range in.Invite {
		if err := s.requireUser(ctx, id); err != nil {
			return nil, err
		}
	}
	e := &models.Event{AuthorID: authorID, Status: models.EventPlanned}
	in.apply(e)

	var triggers []fanout.Trigger
	err := s.store.CreateEvent(ctx, e, func(tx Tx) error {
		triggers = triggers[:0]
		emit := collect(tx, &triggers)
		for _, id := range dedupe(in.Invite) {
			if _, err := sendInvite(ctx, tx, authorID, id, emit); err != nil {
				return err
			}
		}
		return nil
	})
	s.record("create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, triggers)
	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.String("author_id", authorID.String()), zap.Int("invites", len(triggers)))
	return e, nil
}

// Get returns an event. Users blacklisted on it get ErrForbidden.
func (s *Service) Get(ctx context.Context, eventID, viewerID uuid.UUID) (*models.Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.IsBlacklisted(viewerID) {
		return nil, ErrForbidden
	}
	return e, nil
}

// List returns events matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Event, error) {
	return s.store.ListEvents(ctx, f)
}

// Update replaces the writable fields of an event. Only the author may update,
// and never below the current member count or after the event finished.
func (s *Service) Update(ctx context.Context, eventID, actorID uuid.UUID, in EventInput) (*models.Event, error) {
	var updated *models.Event
	err := s.mutate(ctx, "update", eventID, func(tx Tx, emit emitFunc) error {
		e := tx.Event()
		if !e.IsAuthor(actorID) {
			return ErrNotAuthor
		}
		if e.Status == models.EventFinished {
			return ErrEventFinished
		}
		if err := in.validate(s.nowFunc(), &e.StartAt); err != nil {
			return err
		}
		if in.AmountMembers < len(e.Members) {
			return ErrCapacityBelowMembers
		}
		next := e.Clone()
		in.apply(next)
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		emit(fanout.KindEventUpdated, fanout.Trigger{Actor: actorID})
		updated = tx.Event().Clone()
		return nil
	})
	return updated, err
}

// Delete removes an event; members and spectators are told first.
func (s *Service) Delete(ctx context.Context, eventID, actorID uuid.UUID) error {
	return s.mutate(ctx, "delete", eventID, func(tx Tx, emit emitFunc) error {
		if !tx.Event().IsAuthor(actorID) {
			return ErrNotAuthor
		}
		emit(fanout.KindEventDeleted, fanout.Trigger{Actor: actorID})
		return tx.Delete(ctx)
	})
}

// BulkDelete deletes the listed events the actor authored and returns their ids. Others are skipped.
func (s *Service) BulkDelete(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) []uuid.UUID {
	done := make([]uuid.UUID, 0, len(ids))
	for _, id := range dedupe(ids) {
		if err := s.Delete(ctx, id, actorID); err != nil {
			s.skip("bulk delete", id, err)
			continue
		}
		done = append(done, id)
	}
	return done
}

// Join adds the user to an open event, or files a participation request for a private one.
func (s *Service) Join(ctx context.Context, eventID, userID uuid.UUID) (*JoinResult, error) {
	res := &JoinResult{}
	err := s.mutate(ctx, "join", eventID, func(tx Tx, emit emitFunc) error {
		e := tx.Event()
		if e.Status != models.EventPlanned {
			return ErrEventNotJoinable
		}
		if e.IsFull() {
			return ErrEventFull
		}
		switch {
		case e.IsMember(userID):
			return ErrAlreadyMember
		case e.IsFan(userID):
			return ErrAlreadyFan
		case e.IsAuthor(userID):
			return ErrAuthorCannotJoin
		case e.IsBlacklisted(userID):
			return ErrForbidden
		}
		pending, err := tx.HasParticipation(ctx, models.KindRequest, userID, e.AuthorID, models.StatusWaiting)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateRequest
		}

		if !e.Privacy {
			if err := addMember(ctx, tx, userID, emit); err != nil {
				return err
			}
			emit(fanout.KindMemberJoined, fanout.Trigger{Actor: userID})
			res.Joined = true
			return nil
		}
		p := &models.Participation{
			Kind:        models.KindRequest,
			EventID:     e.ID,
			SenderID:    userID,
			RecipientID: e.AuthorID,
			Status:      models.StatusWaiting,
		}
		if err := tx.CreateParticipation(ctx, p); err != nil {
			return err
		}
		emit(fanout.KindRequestSent, fanout.Trigger{Actor: userID, Participation: p})
		res.Request = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// JoinAsSpectator attaches the user to the event without taking a slot.
func (s *Service) JoinAsSpectator(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.mutate(ctx, "spectate", eventID, func(tx Tx, _ emitFunc) error {
		e := tx.Event()
		switch {
		case e.IsAuthor(userID):
			return ErrAuthorCannotJoin
		case e.IsFan(userID):
			return ErrAlreadyFan
		case e.IsMember(userID):
			return ErrAlreadyMember
		case e.IsBlacklisted(userID):
			return ErrForbidden
		case e.Status == models.EventFinished:
			return ErrEventNotJoinable
		}
		return tx.AddFan(ctx, userID)
	})
}

// Leave removes the user from the members and tells the author.
func (s *Service) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.mutate(ctx, "leave", eventID, func(tx Tx, emit emitFunc) error {
		if !tx.Event().IsMember(userID) {
			return ErrNotAMember
		}
		if err := tx.RemoveMember(ctx, userID); err != nil {
			return err
		}
		emit(fanout.KindMemberLeft, fanout.Trigger{Actor: userID})
		return nil
	})
}

// LeaveAsSpectator detaches a spectator. Nobody is notified.
func (s *Service) LeaveAsSpectator(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.mutate(ctx, "unspectate", eventID, func(tx Tx, _ emitFunc) error {
		if !tx.Event().IsFan(userID) {
			return ErrNotAFan
		}
		return tx.RemoveFan(ctx, userID)
	})
}

// RemoveMember lets the author kick a member. The member is blacklisted for good and told why.
func (s *Service) RemoveMember(ctx context.Context, eventID, actorID, targetID uuid.UUID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	return s.mutate(ctx, "remove", eventID, func(tx Tx, emit emitFunc) error {
		e := tx.Event()
		if !e.IsAuthor(actorID) {
			return ErrNotAuthor
		}
		if !e.IsMember(targetID) {
			return ErrNotAMember
		}
		if err := tx.RemoveMember(ctx, targetID); err != nil {
			return err
		}
		if err := tx.AddToBlackList(ctx, targetID); err != nil {
			return err
		}
		emit(fanout.KindUserRemoved, fanout.Trigger{Actor: actorID, Target: targetID, Reason: reason})
		return nil
	})
}

// SendInvite creates a Waiting invite from sender to recipient.
func (s *Service) SendInvite(ctx context.Context, eventID, senderID, recipientID uuid.UUID) (*models.Participation, error) {
	if err := s.requireUser(ctx, recipientID); err != nil {
		return nil, err
	}
	var invite *models.Participation
	err := s.mutate(ctx, "invite", eventID, func(tx Tx, emit emitFunc) error {
		p, err := sendInvite(ctx, tx, senderID, recipientID, emit)
		invite = p
		return err
	})
	return invite, err
}

func sendInvite(ctx context.Context, tx Tx, senderID, recipientID uuid.UUID, emit emitFunc) (*models.Participation, error) {
	e := tx.Event()
	switch {
	case senderID == recipientID:
		return nil, ErrSelfInvite
	case e.IsAuthor(recipientID):
		return nil, ErrAuthorCannotBeInvited
	case e.IsBlacklisted(recipientID):
		return nil, ErrRecipientBlacklisted
	}
	declined, err := tx.HasParticipation(ctx, models.KindInvite, uuid.Nil, recipientID, models.StatusDeclined)
	if err != nil {
		return nil, err
	}
	if declined {
		return nil, ErrRecipientPreviouslyDeclined
	}
	if !e.IsAuthor(senderID) && !e.IsMember(senderID) {
		return nil, ErrSenderNotAuthorized
	}
	if e.Status == models.EventFinished {
		return nil, ErrEventNotJoinable
	}
	if e.IsMember(recipientID) {
		return nil, ErrAlreadyMember
	}
	pending, err := tx.HasParticipation(ctx, models.KindInvite, uuid.Nil, recipientID, models.StatusWaiting)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicateInvite
	}

	p := &models.Participation{
		Kind:        models.KindInvite,
		EventID:     e.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.StatusWaiting,
	}
	if err := tx.CreateParticipation(ctx, p); err != nil {
		return nil, err
	}
	emit(fanout.KindInviteSent, fanout.Trigger{Actor: senderID, Target: recipientID, Participation: p})
	return p, nil
}

// RespondInvites accepts or declines the caller's invites. Items that cannot be answered are skipped;
// the returned ids are the ones that changed.
func (s *Service) RespondInvites(ctx context.Context, responderID uuid.UUID, ids []uuid.UUID, accept bool) []uuid.UUID {
	return s.respond(ctx, models.KindInvite, responderID, ids, accept)
}

// RespondRequests accepts or declines requests to the caller's private events, same policy as RespondInvites.
func (s *Service) RespondRequests(ctx context.Context, responderID uuid.UUID, ids []uuid.UUID, accept bool) []uuid.UUID {
	return s.respond(ctx, models.KindRequest, responderID, ids, accept)
}

func (s *Service) respond(ctx context.Context, kind models.ParticipationKind, responderID uuid.UUID, ids []uuid.UUID, accept bool) []uuid.UUID {
	done := make([]uuid.UUID, 0, len(ids))
	for _, id := range dedupe(ids) {
		if err := s.respondOne(ctx, kind, responderID, id, accept); err != nil {
			s.skip("respond "+string(kind), id, err)
			continue
		}
		done = append(done, id)
	}
	return done
}

func (s *Service) respondOne(ctx context.Context, kind models.ParticipationKind, responderID, id uuid.UUID, accept bool) error {
	p, err := s.store.GetParticipation(ctx, id)
	if err != nil {
		return err
	}
	if p.Kind != kind {
		return ErrParticipationNotFound
	}
	return s.mutate(ctx, "respond_"+string(kind), p.EventID, func(tx Tx, emit emitFunc) error {
		p, err := tx.LockParticipation(ctx, id)
		if err != nil {
			return err
		}
		// re-checked under the lock; the read above only located the event
		if p.RecipientID != responderID {
			return ErrNotRecipient
		}
		if !p.IsOpen() {
			return ErrAlreadyResolved
		}
		joiner := p.RecipientID
		if kind == models.KindRequest {
			joiner = p.SenderID
		}
		if accept && !tx.Event().IsMember(joiner) {
			if tx.Event().IsBlacklisted(joiner) {
				return ErrForbidden
			}
			if err := addMember(ctx, tx, joiner, emit); err != nil {
				return err
			}
		}
		status := models.ResponseStatus(accept)
		if err := tx.SetParticipationStatus(ctx, id, status); err != nil {
			return err
		}
		p.Status = status

		triggerKind := fanout.KindInviteResponded
		if kind == models.KindRequest {
			triggerKind = fanout.KindRequestResponded
		}
		emit(triggerKind, fanout.Trigger{Actor: responderID, Participation: p, Accepted: accept})
		return nil
	})
}

// ListInvites returns the invites waiting for the user's answer.
func (s *Service) ListInvites(ctx context.Context, userID uuid.UUID) ([]models.Participation, error) {
	return s.store.ListWaiting(ctx, userID, models.KindInvite)
}

// ListRequests returns the requests waiting on the user's events.
func (s *Service) ListRequests(ctx context.Context, userID uuid.UUID) ([]models.Participation, error) {
	return s.store.ListWaiting(ctx, userID, models.KindRequest)
}

// addMember takes a slot for the user, moving them off the spectators if needed,
// and announces the last slot when the roster fills up.
func addMember(ctx context.Context, tx Tx, userID uuid.UUID, emit emitFunc) error {
	e := tx.Event()
	if e.IsFull() {
		return ErrEventFull
	}
	if e.IsFan(userID) {
		if err := tx.RemoveFan(ctx, userID); err != nil {
			return err
		}
	}
	if err := tx.AddMember(ctx, userID); err != nil {
		return err
	}
	if tx.Event().IsFull() {
		emit(fanout.KindLastSlotFilled, fanout.Trigger{Actor: userID})
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, id uuid.UUID) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

// skip logs a bulk item that was not applied. Domain refusals are expected and logged quietly.
func (s *Service) skip(op string, id uuid.UUID, err error) {
	if _, ok := apperror.As(err); ok || errors.Is(err, context.Canceled) {
		s.logger.Debug("bulk item skipped", zap.String("op", op), zap.String("id", id.String()), zap.Error(err))
		return
	}
	s.logger.Warn("bulk item failed", zap.String("op", op), zap.String("id", id.String()), zap.Error(err))
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
