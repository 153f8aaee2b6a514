package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/blanball/backend/internal/models"
)

// ListFilter narrows event listings. Zero fields match everything.
type ListFilter struct {
	AuthorID      uuid.UUID
	ParticipantID uuid.UUID // member or spectator
	Status        models.EventStatus
}

// Store is the persistence the membership state machine runs on.
type Store interface {
	// WithEvent locks the event row and runs fn inside one transaction.
	// fn's error rolls the transaction back. Returns ErrEventNotFound if the event is gone.
	WithEvent(ctx context.Context, eventID uuid.UUID, fn func(tx Tx) error) error
	// CreateEvent inserts e and runs fn in the same transaction with the new row locked.
	CreateEvent(ctx context.Context, e *models.Event, fn func(tx Tx) error) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, f ListFilter) ([]models.Event, error)
	GetParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error)
	// ListWaiting returns open participations of kind addressed to recipientID, newest first.
	ListWaiting(ctx context.Context, recipientID uuid.UUID, kind models.ParticipationKind) ([]models.Participation, error)
	ListUnfinishedEventIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Tx mutates one locked event. Event reflects every mutation made through the Tx.
type Tx interface {
	Event() *models.Event
	AddMember(ctx context.Context, userID uuid.UUID) error
	RemoveMember(ctx context.Context, userID uuid.UUID) error
	AddFan(ctx context.Context, userID uuid.UUID) error
	RemoveFan(ctx context.Context, userID uuid.UUID) error
	AddToBlackList(ctx context.Context, userID uuid.UUID) error
	CreateParticipation(ctx context.Context, p *models.Participation) error
	// HasParticipation reports whether a participation of kind exists on the event matching
	// the given sender/recipient (uuid.Nil matches any) in one of statuses.
	HasParticipation(ctx context.Context, kind models.ParticipationKind, senderID, recipientID uuid.UUID, statuses ...models.ParticipationStatus) (bool, error)
	// LockParticipation reads a participation of this event FOR UPDATE.
	LockParticipation(ctx context.Context, id uuid.UUID) (*models.Participation, error)
	SetParticipationStatus(ctx context.Context, id uuid.UUID, status models.ParticipationStatus) error
	Update(ctx context.Context, e *models.Event) error
	SetStatus(ctx context.Context, status models.EventStatus) error
	Delete(ctx context.Context) error
	// DeleteOpenParticipations removes the event's Waiting invites and requests.
	DeleteOpenParticipations(ctx context.Context) (int64, error)
	// FlagNotificationsFinished sets data.event.finished on every notification about the event.
	FlagNotificationsFinished(ctx context.Context) (int64, error)
}
