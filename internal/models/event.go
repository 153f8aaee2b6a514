package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle stage of an event. It only moves forward.
type EventStatus string

const (
	EventPlanned  EventStatus = "Planned"
	EventActive   EventStatus = "Active"
	EventFinished EventStatus = "Finished"
)

func (s EventStatus) rank() int {
	switch s {
	case EventPlanned:
		return 1
	case EventActive:
		return 2
	case EventFinished:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s.rank() > 0
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s EventStatus) CanAdvanceTo(next EventStatus) bool {
	return next.rank() > s.rank()
}

// EventType is the kind of football played.
type EventType string

const (
	EventFootball EventType = "Football"
	EventFutsal   EventType = "Futsal"
)

// Gender of the players an event is meant for.
type Gender string

const (
	GenderMan   Gender = "Man"
	GenderWoman Gender = "Woman"
)

// Forms is the kit players are expected to wear.
type Forms string

const (
	FormsShirtFront Forms = "Shirt-Front"
	FormsTShirt     Forms = "T-Shirt"
	FormsAny        Forms = "Any"
)

// Roster and scheduling bounds.
const (
	MinMembers      = 6
	MaxMembers      = 50
	MinDuration     = 10
	MaxDuration     = 180
	DurationStep    = 10
	MaxPriceDescLen = 500
)

// ValidDuration reports whether minutes is one of 10, 20, ... 180.
func ValidDuration(minutes int) bool {
	return minutes >= MinDuration && minutes <= MaxDuration && minutes%DurationStep == 0
}

// ValidCapacity reports whether n is an allowed amount of members.
func ValidCapacity(n int) bool {
	return n >= MinMembers && n <= MaxMembers
}

// Event is a scheduled pickup game with a capacity-bounded roster.
type Event struct {
	ID               uuid.UUID   `json:"id"`
	AuthorID         uuid.UUID   `json:"author_id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Place            string      `json:"place"`
	Type             EventType   `json:"type"`
	Gender           Gender      `json:"gender"`
	NeedBall         bool        `json:"need_ball"`
	NeedForm         bool        `json:"need_form"`
	Forms            Forms       `json:"forms"`
	ContactNumber    *string     `json:"contact_number,omitempty"`
	Price            *int        `json:"price,omitempty"`
	PriceDescription *string     `json:"price_description,omitempty"`
	StartAt          time.Time   `json:"date_and_time"`
	DurationMinutes  int         `json:"duration"`
	AmountMembers    int         `json:"amount_members"`
	Privacy          bool        `json:"privacy"`
	Status           EventStatus `json:"status"`
	Members          []uuid.UUID `json:"current_users"`
	Fans             []uuid.UUID `json:"current_fans"`
	BlackList        []uuid.UUID `json:"-"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsAuthor reports whether userID created the event.
func (e *Event) IsAuthor(userID uuid.UUID) bool { return e.AuthorID == userID }

// IsMember reports whether userID occupies a roster slot.
func (e *Event) IsMember(userID uuid.UUID) bool { return contains(e.Members, userID) }

// IsFan reports whether userID is attached as a spectator.
func (e *Event) IsFan(userID uuid.UUID) bool { return contains(e.Fans, userID) }

// IsBlacklisted reports whether userID was removed from the event.
func (e *Event) IsBlacklisted(userID uuid.UUID) bool { return contains(e.BlackList, userID) }

// IsFull reports whether no roster slot is left.
func (e *Event) IsFull() bool { return len(e.Members) >= e.AmountMembers }

// EndsAt is the scheduled end of the game.
func (e *Event) EndsAt() time.Time {
	return e.StartAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// Audience returns members followed by fans, without duplicates.
func (e *Event) Audience() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(e.Members)+len(e.Fans))
	seen := make(map[uuid.UUID]struct{}, cap(out))
	for _, list := range [][]uuid.UUID{e.Members, e.Fans} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy of the event's roster slices.
func (e *Event) Clone() *Event {
	c := *e
	c.Members = append([]uuid.UUID(nil), e.Members...)
	c.Fans = append([]uuid.UUID(nil), e.Fans...)
	c.BlackList = append([]uuid.UUID(nil), e.BlackList...)
	return &c
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
