package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipationKind distinguishes the two flows sharing the participation record.
type ParticipationKind string

const (
	// KindInvite is sent by the author or a member to bring a user in.
	KindInvite ParticipationKind = "invite"
	// KindRequest is sent by a user to the author of a private event.
	KindRequest ParticipationKind = "request"
)

// ParticipationStatus is Waiting until answered, then terminal.
type ParticipationStatus string

const (
	StatusWaiting  ParticipationStatus = "Waiting"
	StatusAccepted ParticipationStatus = "Accepted"
	StatusDeclined ParticipationStatus = "Declined"
)

// Participation is an invite to an event or a request to take part in one.
type Participation struct {
	ID          uuid.UUID           `json:"id"`
	Kind        ParticipationKind   `json:"kind"`
	EventID     uuid.UUID           `json:"event_id"`
	SenderID    uuid.UUID           `json:"sender_id"`
	RecipientID uuid.UUID           `json:"recipient_id"`
	Status      ParticipationStatus `json:"status"`
	CreatedAt   time.Time           `json:"time_created"`
}

// IsOpen reports whether the participation still awaits an answer.
func (p *Participation) IsOpen() bool { return p.Status == StatusWaiting }

// ResponseStatus maps an accept/decline answer to the terminal status.
func ResponseStatus(accept bool) ParticipationStatus {
	if accept {
		return StatusAccepted
	}
	return StatusDeclined
}
