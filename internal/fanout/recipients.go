package fanout

import (
	"time"

	"github.com/google/uuid"

	"github.com/blanball/backend/internal/models"
)

// Trigger describes one domain event. Event is the roster snapshot after the change.
type Trigger struct {
	Kind          Kind
	Event         *models.Event
	Actor         uuid.UUID
	Target        uuid.UUID
	Participation *models.Participation
	Accepted      bool
	Reason        string
	TimeToStart   int
	Review        *models.Review
}

// Delivery is one notification for one user.
type Delivery struct {
	UserID      uuid.UUID
	MessageType string
	Payload     Payload
}

// Recipients computes the deliveries for a trigger. Each user appears at most once.
func Recipients(t Trigger) []Delivery {
	var out []Delivery
	seen := make(map[uuid.UUID]struct{})
	add := func(userID uuid.UUID, messageType string, p Payload) {
		if userID == uuid.Nil {
			return
		}
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		if p.Recipient == nil {
			p.Recipient = &Person{ID: userID}
		}
		out = append(out, Delivery{UserID: userID, MessageType: messageType, Payload: p})
	}

	switch t.Kind {
	case KindMemberJoined:
		add(t.Event.AuthorID, MsgNewUserOnEvent, Payload{Sender: person(t.Actor), Event: eventRef(t.Event)})
	case KindMemberLeft:
		add(t.Event.AuthorID, MsgLeaveUserFromEvent, Payload{Sender: person(t.Actor), Event: eventRef(t.Event)})
	case KindInviteSent:
		p := t.Participation
		add(p.RecipientID, MsgInviteUserToEvent, Payload{
			Sender: person(p.SenderID),
			Event:  eventRef(t.Event),
			Invite: &ParticipationRef{ID: p.ID},
		})
	case KindInviteResponded:
		p := t.Participation
		add(p.SenderID, MsgResponseToInvite, Payload{
			Sender: person(p.RecipientID),
			Event:  eventRef(t.Event),
			Invite: &ParticipationRef{ID: p.ID, Response: boolPtr(t.Accepted)},
		})
	case KindRequestSent:
		p := t.Participation
		add(p.RecipientID, MsgNewRequest, Payload{
			Sender:  person(p.SenderID),
			Event:   eventRef(t.Event),
			Request: &ParticipationRef{ID: p.ID},
		})
	case KindRequestResponded:
		p := t.Participation
		add(p.SenderID, MsgResponseToRequest, Payload{
			Sender:  person(p.RecipientID),
			Event:   eventRef(t.Event),
			Request: &ParticipationRef{ID: p.ID, Response: boolPtr(t.Accepted)},
		})
	case KindUserRemoved:
		add(t.Target, MsgUserRemovedFromEvent, Payload{Event: eventRef(t.Event), Reason: &Reason{Text: t.Reason}})
	case KindEventUpdated, KindEventDeleted, KindEventEnded:
		msg := map[Kind]string{
			KindEventUpdated: MsgEventUpdated,
			KindEventDeleted: MsgEventDeleted,
			KindEventEnded:   MsgEventEnded,
		}[t.Kind]
		for _, userID := range t.Event.Audience() {
			add(userID, msg, Payload{Event: eventRef(t.Event)})
		}
	case KindEventStartingReminder:
		start := t.Event.StartAt.UTC().Truncate(time.Minute)
		minutes := t.TimeToStart
		for _, userID := range t.Event.Audience() {
			add(userID, MsgEventTimeNotification, Payload{Event: &EventRef{
				ID:          t.Event.ID,
				Name:        t.Event.Name,
				StartTime:   &start,
				TimeToStart: &minutes,
			}})
		}
	case KindLastSlotFilled:
		add(t.Actor, MsgYouAreLastUserOnEvent, Payload{Event: eventRef(t.Event)})
		for _, userID := range append(t.Event.Audience(), t.Event.AuthorID) {
			add(userID, MsgLastUserOnEvent, Payload{Event: eventRef(t.Event)})
		}
	case KindReviewCreated:
		r := t.Review
		add(r.UserID, MsgReviewCreated, Payload{
			Sender: person(r.AuthorID),
			Review: &ReviewRef{ID: r.ID, Stars: r.Stars, Text: r.Text},
		})
	}
	return out
}

func person(id uuid.UUID) *Person {
	if id == uuid.Nil {
		return nil
	}
	return &Person{ID: id}
}

func eventRef(e *models.Event) *EventRef {
	return &EventRef{ID: e.ID, Name: e.Name}
}

func boolPtr(b bool) *bool { return &b }
