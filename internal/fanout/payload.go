package fanout

import (
	"time"

	"github.com/google/uuid"
)

// Person identifies a user inside a notification payload.
type Person struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	LastName string    `json:"last_name"`
}

// EventRef is the event section of a payload. Finished is patched in when the event ends.
type EventRef struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	TimeToStart *int       `json:"time_to_start,omitempty"`
	Finished    bool       `json:"finished,omitempty"`
}

// ParticipationRef points at an invite or request; Response is set once answered.
type ParticipationRef struct {
	ID       uuid.UUID `json:"id"`
	Response *bool     `json:"response,omitempty"`
}

// Reason carries the author's explanation for a removal.
type Reason struct {
	Text string `json:"text"`
}

// ReviewRef is the review section of a payload.
type ReviewRef struct {
	ID    uuid.UUID `json:"id"`
	Stars int       `json:"stars"`
	Text  string    `json:"text"`
}

// Payload is the data stored with a notification and pushed to clients.
type Payload struct {
	Recipient *Person           `json:"recipient,omitempty"`
	Sender    *Person           `json:"sender,omitempty"`
	Event     *EventRef         `json:"event,omitempty"`
	Invite    *ParticipationRef `json:"invite,omitempty"`
	Request   *ParticipationRef `json:"request,omitempty"`
	Reason    *Reason           `json:"reason,omitempty"`
	Review    *ReviewRef        `json:"review,omitempty"`
}

// PushMessage is the envelope written to a user's push channel.
type PushMessage struct {
	MessageType    string      `json:"message_type"`
	NotificationID *uuid.UUID  `json:"notification_id,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}
