package events

import "github.com/blanball/backend/pkg/apperror"

var (
	ErrEventNotFound         = apperror.NotFound("event")
	ErrParticipationNotFound = apperror.NotFound("participation")
	ErrUserNotFound          = apperror.NotFound("user")

	ErrAlreadyMember               = apperror.New(apperror.KindConflict, "already_member", "user is already a member of the event")
	ErrAlreadyFan                  = apperror.New(apperror.KindConflict, "already_fan", "user is already a spectator of the event")
	ErrAuthorCannotJoin            = apperror.New(apperror.KindConflict, "author_cannot_join", "event author cannot join their own event")
	ErrDuplicateRequest            = apperror.New(apperror.KindConflict, "duplicate_request", "request to participate already sent")
	ErrDuplicateInvite             = apperror.New(apperror.KindConflict, "duplicate_invite", "user already has a pending invite to the event")
	ErrEventFull                   = apperror.New(apperror.KindConflict, "event_full", "event has no free slots")
	ErrEventNotJoinable            = apperror.New(apperror.KindConflict, "event_not_joinable", "event is not open for joining")
	ErrEventFinished               = apperror.New(apperror.KindConflict, "event_finished", "event has already finished")
	ErrNotAMember                  = apperror.New(apperror.KindConflict, "not_a_member", "user is not a member of the event")
	ErrNotAFan                     = apperror.New(apperror.KindConflict, "not_a_fan", "user is not a spectator of the event")
	ErrAuthorCannotBeInvited       = apperror.New(apperror.KindConflict, "author_cannot_be_invited", "event author cannot be invited")
	ErrRecipientPreviouslyDeclined = apperror.New(apperror.KindConflict, "recipient_previously_declined", "user has already declined an invite to the event")
	ErrAlreadyResolved             = apperror.New(apperror.KindConflict, "already_resolved", "invite or request has already been answered")
	ErrCapacityBelowMembers        = apperror.New(apperror.KindConflict, "capacity_below_members", "amount of members cannot be less than current members")
	ErrSelfInvite                  = apperror.New(apperror.KindValidation, "self_invite", "cannot invite yourself")
	ErrReasonRequired              = apperror.New(apperror.KindValidation, "reason_required", "removal reason is required")
	ErrForbidden                   = apperror.New(apperror.KindPermission, "forbidden", "user is blacklisted on the event")
	ErrRecipientBlacklisted        = apperror.New(apperror.KindPermission, "recipient_blacklisted", "user cannot be invited to the event")
	ErrSenderNotAuthorized         = apperror.New(apperror.KindPermission, "sender_not_authorized", "only the author or a member can invite")
	ErrNotRecipient                = apperror.New(apperror.KindPermission, "not_recipient", "only the recipient can answer")
	ErrNotAuthor                   = apperror.New(apperror.KindPermission, "not_author", "only the event author can do this")
)
