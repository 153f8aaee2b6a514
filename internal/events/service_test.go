package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/apperror"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *memStore
	pub    *recPublisher
	users  memUsers
	author uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), pub: &recPublisher{}, users: memUsers{}}
	f.author = f.users.add(1)[0]
	f.svc = NewService(f.store, f.pub, f.users, nil)
	f.svc.nowFunc = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedEvent(mod func(e *models.Event)) *models.Event {
	e := &models.Event{
		AuthorID:        f.author,
		Name:            "Sunday game",
		Description:     "5v5",
		Place:           "Park",
		Type:            models.EventFootball,
		Gender:          models.GenderMan,
		Forms:           models.FormsAny,
		StartAt:         testNow.Add(48 * time.Hour),
		DurationMinutes: 60,
		AmountMembers:   6,
		Status:          models.EventPlanned,
	}
	if mod != nil {
		mod(e)
	}
	return f.store.seed(e)
}

func validInput() EventInput {
	return EventInput{
		Name:            "Evening futsal",
		Description:     "indoor",
		Place:           "Hall 3",
		Type:            models.EventFutsal,
		Gender:          models.GenderWoman,
		StartAt:         testNow.Add(24 * time.Hour),
		DurationMinutes: 90,
	}
}

func TestCreateAppliesDefaultsAndInvites(t *testing.T) {
	f := newFixture(t)
	invitees := f.users.add(2)

	e, err := f.svc.Create(context.Background(), f.author, CreateInput{
		EventInput: validInput(),
		Invite:     []uuid.UUID{invitees[0], invitees[1], invitees[0]},
	})
	require.NoError(t, err)

	assert.Equal(t, models.EventPlanned, e.Status)
	assert.Equal(t, models.MinMembers, e.AmountMembers)
	assert.Equal(t, models.FormsAny, e.Forms)
	assert.Len(t, f.store.participations(e.ID), 2)
	assert.Equal(t, []fanout.Kind{fanout.KindInviteSent, fanout.KindInviteSent}, f.pub.kinds())
}

func TestCreateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ok := f.users.add(1)[0]

	_, err := f.svc.Create(context.Background(), f.author, CreateInput{
		EventInput: validInput(),
		Invite:     []uuid.UUID{ok, f.author},
	})
	assert.ErrorIs(t, err, ErrSelfInvite)

	_, err = f.svc.Create(context.Background(), f.author, CreateInput{
		EventInput: validInput(),
		Invite:     []uuid.UUID{uuid.New()},
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	list, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.pub.kinds())
}

func TestCreateValidation(t *testing.T) {
	price := 100
	long := string(make([]byte, models.MaxPriceDescLen+1))
	desc := "cash"

	tests := []struct {
		name string
		mod  func(in *EventInput)
	}{
		{"past start", func(in *EventInput) { in.StartAt = testNow.Add(-time.Hour) }},
		{"duration step", func(in *EventInput) { in.DurationMinutes = 25 }},
		{"duration too long", func(in *EventInput) { in.DurationMinutes = 190 }},
		{"too few members", func(in *EventInput) { in.AmountMembers = 5 }},
		{"too many members", func(in *EventInput) { in.AmountMembers = 51 }},
		{"price without description", func(in *EventInput) { in.Price = &price }},
		{"description without price", func(in *EventInput) { in.PriceDescription = &desc }},
		{"description too long", func(in *EventInput) { in.Price = &price; in.PriceDescription = &long }},
		{"blank name", func(in *EventInput) { in.Name = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mod(&in)
			_, err := f.svc.Create(context.Background(), f.author, CreateInput{EventInput: in})
			assert.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)
		})
	}
}

func TestCreateRoundsStartToMinute(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.StartAt = testNow.Add(time.Hour + 40*time.Second)

	e, err := f.svc.Create(context.Background(), f.author, CreateInput{EventInput: in})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(61*time.Minute), e.StartAt)
}

func TestJoinOpenEvent(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(nil)
	u := f.users.add(1)[0]
	ctx := context.Background()

	res, err := f.svc.Join(ctx, e.ID, u)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Nil(t, res.Request)
	assert.True(t, f.store.event(e.ID).IsMember(u))
	assert.Equal(t, []fanout.Kind{fanout.KindMemberJoined}, f.pub.kinds())

	_, err = f.svc.Join(ctx, e.ID, u)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	_, err = f.svc.Join(ctx, e.ID, f.author)
	assert.ErrorIs(t, err, ErrAuthorCannotJoin)
	_, err = f.svc.Join(ctx, uuid.New(), u)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Len(t, f.pub.kinds(), 1)
}

func TestJoinRejectsStartedEvent(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(func(e *models.Event) { e.Status = models.EventActive })

	_, err := f.svc.Join(context.Background(), e.ID, uuid.New())
	assert.ErrorIs(t, err, ErrEventNotJoinable)
}

func TestJoinSingleSlot(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(func(e *models.Event) { e.AmountMembers = 1 })
	users := f.users.add(2)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, e.ID, users[0])
	require.NoError(t, err)
	assert.Equal(t, []fanout.Kind{fanout.KindLastSlotFilled, fanout.KindMemberJoined}, f.pub.kinds())

	_, err = f.svc.Join(ctx, e.ID, users[1])
	assert.ErrorIs(t, err, ErrEventFull)
	assert.Equal(t, []uuid.UUID{users[0]}, f.store.event(e.ID).Members)
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(nil)
	users := f.users.add(20)

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined, full := 0, 0
	for _, u := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Join(context.Background(), e.ID, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case err == ErrEventFull:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 6, joined)
	assert.Equal(t, 14, full)
	assert.Len(t, f.store.event(e.ID).Members, 6)
	assert.Equal(t, 1, f.pub.count(fanout.KindLastSlotFilled))
}

func TestPrivateEventRequestFlow(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(func(e *models.Event) { e.Privacy = true })
	u := f.users.add(1)[0]
	ctx := context.Background()

	res, err := f.svc.Join(ctx, e.ID, u)
	require.NoError(t, err)
	assert.False(t, res.Joined)
	require.NotNil(t, res.Request)
	assert.Equal(t, models.StatusWaiting, res.Request.Status)
	assert.Equal(t, f.author, res.Request.RecipientID)
	assert.False(t, f.store.event(e.ID).IsMember(u))

	_, err = f.svc.Join(ctx, e.ID, u)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	pending, err := f.svc.ListRequests(ctx, f.author)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// only the author can answer
	assert.Empty(t, f.svc.RespondRequests(ctx, u, []uuid.UUID{res.Request.ID}, true))

	done := f.svc.RespondRequests(ctx, f.author, []uuid.UUID{res.Request.ID}, true)
	assert.Equal(t, []uuid.UUID{res.Request.ID}, done)
	assert.True(t, f.store.event(e.ID).IsMember(u))
	assert.Equal(t, models.StatusAccepted, f.store.participation(res.Request.ID).Status)

	last := f.pub.last()
	assert.Equal(t, fanout.KindRequestResponded, last.Kind)
	assert.True(t, last.Accepted)

	// terminal status never changes again
	assert.Empty(t, f.svc.RespondRequests(ctx, f.author, []uuid.UUID{res.Request.ID}, false))
	assert.Equal(t, models.StatusAccepted, f.store.participation(res.Request.ID).Status)
}

func TestDeclinedRequestAllowsNewOne(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(func(e *models.Event) { e.Privacy = true })
	u := f.users.add(1)[0]
	ctx := context.Background()

	res, err := f.svc.Join(ctx, e.ID, u)
	require.NoError(t, err)
	require.Len(t, f.svc.RespondRequests(ctx, f.author, []uuid.UUID{res.Request.ID}, false), 1)
	assert.False(t, f.store.event(e.ID).IsMember(u))

	_, err = f.svc.Join(ctx, e.ID, u)
	assert.NoError(t, err)
}

func TestBulkRespondStopsAtCapacity(t *testing.T) {
	f := newFixture(t)
	members := f.users.add(4)
	e := f.seedEvent(func(e *models.Event) {
		e.Privacy = true
		e.Members = members
	})
	applicants := f.users.add(3)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, u := range applicants {
		res, err := f.svc.Join(ctx, e.ID, u)
		require.NoError(t, err)
		ids = append(ids, res.Request.ID)
	}

	done := f.svc.RespondRequests(ctx, f.author, ids, true)
	assert.Equal(t, ids[:2], done)
	assert.Len(t, f.store.event(e.ID).Members, 6)
	assert.Equal(t, models.StatusWaiting, f.store.participation(ids[2]).Status)
	assert.Equal(t, 1, f.pub.count(fanout.KindLastSlotFilled))
}

func TestSendInviteRules(t *testing.T) {
	f := newFixture(t)
	users := f.users.add(4)
	member, outsider, invitee, other := users[0], users[1], users[2], users[3]
	e := f.seedEvent(func(e *models.Event) { e.Members = []uuid.UUID{member} })
	ctx := context.Background()

	_, err := f.svc.SendInvite(ctx, e.ID, member, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = f.svc.SendInvite(ctx, e.ID, member, member)
	assert.ErrorIs(t, err, ErrSelfInvite)
	_, err = f.svc.SendInvite(ctx, e.ID, member, f.author)
	assert.ErrorIs(t, err, ErrAuthorCannotBeInvited)
	_, err = f.svc.SendInvite(ctx, e.ID, outsider, invitee)
	assert.ErrorIs(t, err, ErrSenderNotAuthorized)
	_, err = f.svc.SendInvite(ctx, e.ID, f.author, member)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	p, err := f.svc.SendInvite(ctx, e.ID, member, invitee)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, p.Status)
	assert.Equal(t, fanout.KindInviteSent, f.pub.last().Kind)

	_, err = f.svc.SendInvite(ctx, e.ID, f.author, invitee)
	assert.ErrorIs(t, err, ErrDuplicateInvite)

	require.Len(t, f.svc.RespondInvites(ctx, invitee, []uuid.UUID{p.ID}, false), 1)
	_, err = f.svc.SendInvite(ctx, e.ID, f.author, invitee)
	assert.ErrorIs(t, err, ErrRecipientPreviouslyDeclined)

	_, err = f.svc.SendInvite(ctx, e.ID, f.author, other)
	assert.NoError(t, err)
}

func TestInviteAcceptMovesSpectatorToMembers(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(nil)
	fan := f.users.add(1)[0]
	ctx := context.Background()

	require.NoError(t, f.svc.JoinAsSpectator(ctx, e.ID, fan))
	p, err := f.svc.SendInvite(ctx, e.ID, f.author, fan)
	require.NoError(t, err)

	// the invite addressed to someone else cannot be answered by them
	assert.Empty(t, f.svc.RespondInvites(ctx, f.author, []uuid.UUID{p.ID}, true))
	// a request id is not an invite
	assert.Empty(t, f.svc.RespondRequests(ctx, fan, []uuid.UUID{p.ID}, true))

	assert.Equal(t, []uuid.UUID{p.ID}, f.svc.RespondInvites(ctx, fan, []uuid.UUID{p.ID}, true))
	got := f.store.event(e.ID)
	assert.True(t, got.IsMember(fan))
	assert.False(t, got.IsFan(fan))

	last := f.pub.last()
	assert.Equal(t, fanout.KindInviteResponded, last.Kind)
	assert.Equal(t, fan, last.Actor)
}

func TestAcceptingInviteToFullEventIsSkipped(t *testing.T) {
	f := newFixture(t)
	members := f.users.add(5)
	e := f.seedEvent(func(e *models.Event) { e.Members = members })
	invitees := f.users.add(2)
	ctx := context.Background()

	var invites []uuid.UUID
	for _, u := range invitees {
		p, err := f.svc.SendInvite(ctx, e.ID, f.author, u)
		require.NoError(t, err)
		invites = append(invites, p.ID)
	}

	assert.Len(t, f.svc.RespondInvites(ctx, invitees[0], invites[:1], true), 1)
	assert.Empty(t, f.svc.RespondInvites(ctx, invitees[1], invites[1:], true))
	assert.Equal(t, models.StatusWaiting, f.store.participation(invites[1]).Status)

	// declining still works on a full event
	assert.Len(t, f.svc.RespondInvites(ctx, invitees[1], invites[1:], false), 1)
}

func TestSpectatorRules(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(nil)
	u := f.users.add(1)[0]
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.JoinAsSpectator(ctx, e.ID, f.author), ErrAuthorCannotJoin)
	require.NoError(t, f.svc.JoinAsSpectator(ctx, e.ID, u))
	assert.ErrorIs(t, f.svc.JoinAsSpectator(ctx, e.ID, u), ErrAlreadyFan)
	_, err := f.svc.Join(ctx, e.ID, u)
	assert.ErrorIs(t, err, ErrAlreadyFan)

	require.NoError(t, f.svc.LeaveAsSpectator(ctx, e.ID, u))
	assert.ErrorIs(t, f.svc.LeaveAsSpectator(ctx, e.ID, u), ErrNotAFan)
	assert.Empty(t, f.pub.kinds())

	finished := f.seedEvent(func(e *models.Event) { e.Status = models.EventFinished })
	assert.ErrorIs(t, f.svc.JoinAsSpectator(ctx, finished.ID, u), ErrEventNotJoinable)
}

func TestLeave(t *testing.T) {
	f := newFixture(t)
	u := f.users.add(1)[0]
	e := f.seedEvent(func(e *models.Event) { e.Members = []uuid.UUID{u} })
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Leave(ctx, e.ID, uuid.New()), ErrNotAMember)
	require.NoError(t, f.svc.Leave(ctx, e.ID, u))
	assert.Empty(t, f.store.event(e.ID).Members)
	assert.Equal(t, []fanout.Kind{fanout.KindMemberLeft}, f.pub.kinds())
}

func TestRemoveMemberBlacklists(t *testing.T) {
	f := newFixture(t)
	u := f.users.add(1)[0]
	e := f.seedEvent(func(e *models.Event) { e.Members = []uuid.UUID{u} })
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.RemoveMember(ctx, e.ID, f.author, u, ""), ErrReasonRequired)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, e.ID, u, u, "bye"), ErrNotAuthor)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, e.ID, f.author, uuid.New(), "bye"), ErrNotAMember)

	require.NoError(t, f.svc.RemoveMember(ctx, e.ID, f.author, u, "rude"))
	got := f.store.event(e.ID)
	assert.False(t, got.IsMember(u))
	assert.True(t, got.IsBlacklisted(u))

	last := f.pub.last()
	assert.Equal(t, fanout.KindUserRemoved, last.Kind)
	assert.Equal(t, u, last.Target)
	assert.Equal(t, "rude", last.Reason)

	_, err := f.svc.Join(ctx, e.ID, u)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.JoinAsSpectator(ctx, e.ID, u), ErrForbidden)
	_, err = f.svc.Get(ctx, e.ID, u)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SendInvite(ctx, e.ID, f.author, u)
	assert.ErrorIs(t, err, ErrRecipientBlacklisted)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	members := f.users.add(6)
	e := f.seedEvent(func(e *models.Event) { e.Members = members })
	ctx := context.Background()

	in := validInput()
	_, err := f.svc.Update(ctx, e.ID, members[0], in)
	assert.ErrorIs(t, err, ErrNotAuthor)

	in.AmountMembers = 6
	in.Name = "Renamed"
	got, err := f.svc.Update(ctx, e.ID, f.author, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, members, got.Members)
	assert.Equal(t, []fanout.Kind{fanout.KindEventUpdated}, f.pub.kinds())

	f.pub.reset()
	_, err = f.svc.Update(ctx, e.ID, f.author, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", f.store.event(e.ID).Name)
}

func TestUpdateKeepsPastStartButRejectsShrinking(t *testing.T) {
	f := newFixture(t)
	members := f.users.add(7)
	start := testNow.Add(-30 * time.Minute)
	e := f.seedEvent(func(e *models.Event) {
		e.StartAt = start
		e.AmountMembers = 8
		e.Members = members
		e.Status = models.EventActive
	})
	ctx := context.Background()

	in := validInput()
	in.StartAt = start
	in.AmountMembers = 6
	_, err := f.svc.Update(ctx, e.ID, f.author, in)
	assert.ErrorIs(t, err, ErrCapacityBelowMembers)

	in.AmountMembers = 7
	_, err = f.svc.Update(ctx, e.ID, f.author, in)
	assert.NoError(t, err)

	in.StartAt = start.Add(time.Minute)
	_, err = f.svc.Update(ctx, e.ID, f.author, in)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	done := f.seedEvent(func(e *models.Event) { e.Status = models.EventFinished })
	_, err = f.svc.Update(ctx, done.ID, f.author, validInput())
	assert.ErrorIs(t, err, ErrEventFinished)
}

func TestDeleteAndBulkDelete(t *testing.T) {
	f := newFixture(t)
	other := f.users.add(1)[0]
	mine := []*models.Event{f.seedEvent(nil), f.seedEvent(nil)}
	theirs := f.seedEvent(func(e *models.Event) { e.AuthorID = other })
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Delete(ctx, theirs.ID, f.author), ErrNotAuthor)

	done := f.svc.BulkDelete(ctx, f.author, []uuid.UUID{mine[0].ID, theirs.ID, mine[1].ID, uuid.New()})
	assert.Equal(t, []uuid.UUID{mine[0].ID, mine[1].ID}, done)
	assert.Nil(t, f.store.event(mine[0].ID))
	assert.NotNil(t, f.store.event(theirs.ID))
	assert.Equal(t, 2, f.pub.count(fanout.KindEventDeleted))
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	u := f.users.add(1)[0]
	f.seedEvent(nil)
	joined := f.seedEvent(func(e *models.Event) { e.Fans = []uuid.UUID{u} })
	f.seedEvent(func(e *models.Event) { e.AuthorID = u; e.Status = models.EventFinished })
	ctx := context.Background()

	list, err := f.svc.List(ctx, ListFilter{ParticipantID: u})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, joined.ID, list[0].ID)

	list, err = f.svc.List(ctx, ListFilter{AuthorID: u, Status: models.EventFinished})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(ctx, ListFilter{AuthorID: f.author})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTriggersCarryPostChangeSnapshot(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(nil)
	u := f.users.add(1)[0]

	_, err := f.svc.Join(context.Background(), e.ID, u)
	require.NoError(t, err)

	tr := f.pub.last()
	require.NotNil(t, tr.Event)
	assert.True(t, tr.Event.IsMember(u))
	assert.Equal(t, u, tr.Actor)
}
