// Package fanout turns membership and lifecycle changes into stored notifications and live pushes.
package fanout

// Kind is a domain event that may notify users.
type Kind string

const (
	KindMemberJoined          Kind = "member_joined"
	KindMemberLeft            Kind = "member_left"
	KindInviteSent            Kind = "invite_sent"
	KindInviteResponded       Kind = "invite_responded"
	KindRequestSent           Kind = "request_sent"
	KindRequestResponded      Kind = "request_responded"
	KindUserRemoved           Kind = "user_removed"
	KindEventUpdated          Kind = "event_updated"
	KindEventDeleted          Kind = "event_deleted"
	KindEventStartingReminder Kind = "event_starting_reminder"
	KindEventEnded            Kind = "event_ended"
	KindLastSlotFilled        Kind = "last_slot_filled"
	KindReviewCreated         Kind = "review_created"
)

// Message types stored in notifications.message_type and sent to clients.
const (
	MsgNewUserOnEvent        = "new_user_on_the_event"
	MsgLeaveUserFromEvent    = "leave_user_from_the_event"
	MsgInviteUserToEvent     = "invite_user_to_event"
	MsgResponseToInvite      = "response_to_the_invite_to_event"
	MsgNewRequest            = "new_request_to_participation"
	MsgResponseToRequest     = "response_to_the_request_for_participation"
	MsgUserRemovedFromEvent  = "user_remove_from_event"
	MsgEventUpdated          = "event_updated"
	MsgEventDeleted          = "event_deleted"
	MsgEventTimeNotification = "event_time_notification"
	MsgEventEnded            = "event_has_been_ended"
	MsgLastUserOnEvent       = "last_user_on_the_event"
	MsgYouAreLastUserOnEvent = "you_are_last_user_on_the_event"
	MsgReviewCreated         = "review_created"
)

// Push-only message types. They are never persisted.
const (
	MsgUpdateInviteResponse  = "update_message_accept_or_decline_invite_to_event"
	MsgUpdateRequestResponse = "update_message_accept_or_decline_request_to_participation"
	MsgNotificationsRead     = "notification_read"
	MsgNotificationsDeleted  = "notification_deleted"
	MsgChangeMaintenance     = "change_maintenance"
)
