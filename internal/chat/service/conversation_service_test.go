package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
)

func TestStartDirectCreatesOnce(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	ctx := context.Background()

	conv, err := f.conversations.StartDirect(ctx, users[0].UserID, users[1].UserID, ConversationAttrs{})
	require.NoError(t, err)
	assert.True(t, conv.IsDirect())
	assert.Len(t, conv.Token, 26)
	assert.Equal(t, 2, conv.ParticipantCount)

	// Either side starting again lands in the same conversation.
	again, err := f.conversations.StartDirect(ctx, users[1].UserID, users[0].UserID, ConversationAttrs{})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
}

func TestStartDirectAfterLeaveCreatesFresh(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	ctx := context.Background()

	conv, err := f.conversations.StartDirect(ctx, users[0].UserID, users[1].UserID, ConversationAttrs{})
	require.NoError(t, err)
	require.NoError(t, f.conversations.Leave(ctx, conv.ID, users[1].UserID))

	// Reuse requires both sides active; a departed counterpart means a new
	// conversation.
	fresh, err := f.conversations.StartDirect(ctx, users[0].UserID, users[1].UserID, ConversationAttrs{})
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
}

func TestStartDirectRespectsPolicy(t *testing.T) {
	f := newFixture()
	sender := f.store.addUser(dbmysql.User{Handle: "sender"})
	closed := f.store.addUser(dbmysql.User{Handle: "closed", MessagingPolicy: dbmysql.PolicyNoOne})

	_, err := f.conversations.StartDirect(context.Background(), sender.UserID, closed.UserID, ConversationAttrs{})
	require.ErrorIs(t, err, common.ErrForbidden)

	// Self-messaging is always denied.
	_, err = f.conversations.StartDirect(context.Background(), sender.UserID, sender.UserID, ConversationAttrs{})
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestStartGroupValidation(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(3)
	ctx := context.Background()

	// Initiator alone is not a group.
	_, err := f.conversations.StartGroup(ctx, users[0].UserID, []uint64{users[0].UserID}, ConversationAttrs{})
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	// Unknown participant ids are rejected wholesale.
	_, err = f.conversations.StartGroup(ctx, users[0].UserID, []uint64{users[1].UserID, 777}, ConversationAttrs{})
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	// A block between initiator and any invitee fails the whole create.
	f.store.addBlock(users[0].UserID, users[2].UserID)
	_, err = f.conversations.StartGroup(ctx, users[0].UserID, []uint64{users[1].UserID, users[2].UserID}, ConversationAttrs{})
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestStartGroupAssignsRoles(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(3)
	ctx := context.Background()

	conv, err := f.conversations.StartGroup(ctx, users[0].UserID,
		[]uint64{users[1].UserID, users[2].UserID, users[1].UserID}, // dup is ignored
		ConversationAttrs{Subject: "plans"})
	require.NoError(t, err)
	assert.Equal(t, dbmysql.ConversationTypeGroup, conv.Type)
	assert.Equal(t, "plans", conv.Subject)
	assert.Equal(t, 3, conv.ParticipantCount)

	owner := f.store.participantRow(conv.ID, users[0].UserID)
	require.NotNil(t, owner)
	assert.Equal(t, dbmysql.RoleOwner, owner.Role)
	member := f.store.participantRow(conv.ID, users[1].UserID)
	require.NotNil(t, member)
	assert.Equal(t, dbmysql.RoleMember, member.Role)
}

func TestAddParticipantsRejoinAndCount(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(4)
	conv := f.seedGroup(users[0].UserID, users[1].UserID, users[2].UserID)
	ctx := context.Background()

	require.NoError(t, f.conversations.Leave(ctx, conv.ID, users[2].UserID))
	left := f.store.participantRow(conv.ID, users[2].UserID)
	require.NotNil(t, left)
	require.NotNil(t, left.LeftAt)
	assert.Equal(t, 2, f.store.conversation(conv.ID).ParticipantCount)

	f.clock.Advance(time.Hour)
	affected, err := f.conversations.AddParticipants(ctx, conv.ID, users[0].UserID,
		[]uint64{users[2].UserID, users[3].UserID, users[1].UserID})
	require.NoError(t, err)

	// users[1] was already active: not affected. users[2] rejoined,
	// users[3] is new.
	require.Len(t, affected, 2)

	rejoined := f.store.participantRow(conv.ID, users[2].UserID)
	require.NotNil(t, rejoined)
	assert.Nil(t, rejoined.LeftAt)
	assert.True(t, rejoined.JoinedAt.After(left.JoinedAt))
	assert.Equal(t, left.ID, rejoined.ID, "rejoin reuses the membership row")

	assert.Equal(t, 4, f.store.conversation(conv.ID).ParticipantCount)
}

func TestAddParticipantsRejectsDirect(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(3)
	ctx := context.Background()

	conv, err := f.conversations.StartDirect(ctx, users[0].UserID, users[1].UserID, ConversationAttrs{})
	require.NoError(t, err)

	_, err = f.conversations.AddParticipants(ctx, conv.ID, users[0].UserID, []uint64{users[2].UserID})
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestLeaveIsIdempotent(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	conv := f.seedGroup(users[0].UserID, users[1].UserID)
	ctx := context.Background()

	require.NoError(t, f.conversations.Leave(ctx, conv.ID, users[1].UserID))
	first := f.store.participantRow(conv.ID, users[1].UserID)
	require.NotNil(t, first.LeftAt)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.conversations.Leave(ctx, conv.ID, users[1].UserID))
	second := f.store.participantRow(conv.ID, users[1].UserID)
	assert.True(t, second.LeftAt.Equal(*first.LeftAt), "second leave must not move the timestamp")

	// Leaving a conversation one never joined is also a no-op.
	outsider := f.seedUsers(1)[0]
	require.NoError(t, f.conversations.Leave(ctx, conv.ID, outsider.UserID))
}

func TestMarkReadMovesCursorAndPublishes(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	conv := f.seedGroup(users[0].UserID, users[1].UserID)
	ctx := context.Background()

	msg, err := f.messaging.Send(ctx, users[0].UserID, conv.ID, SendInput{Body: "read me"})
	require.NoError(t, err)

	require.NoError(t, f.conversations.MarkRead(ctx, conv.ID, users[1].UserID, &msg.ID))

	p := f.store.participantRow(conv.ID, users[1].UserID)
	require.NotNil(t, p.LastReadMessageID)
	assert.Equal(t, msg.ID, *p.LastReadMessageID)
	require.NotNil(t, p.LastReadAt)

	events := f.bus.published()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, common.EventMessageRead, last.Name)
	assert.Equal(t, users[1].UserID, last.ActorID)

	// Departed members have no cursor to move.
	require.NoError(t, f.conversations.Leave(ctx, conv.ID, users[1].UserID))
	err = f.conversations.MarkRead(ctx, conv.ID, users[1].UserID, &msg.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostSystemMessageSharesSequenceSpace(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	conv := f.seedGroup(users[0].UserID, users[1].UserID)
	ctx := context.Background()

	_, err := f.messaging.Send(ctx, users[0].UserID, conv.ID, SendInput{Body: "before"})
	require.NoError(t, err)

	sys, err := f.conversations.PostSystemMessage(ctx, conv.ID, "user joined", dbmysql.JSONMap{"kind": "join"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sys.Sequence)
	assert.Nil(t, sys.SenderID)
	assert.True(t, sys.IsSystem())

	after, err := f.messaging.Send(ctx, users[1].UserID, conv.ID, SendInput{Body: "after"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), after.Sequence)

	key := metricKey(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), conv.ID, 0)
	assert.Equal(t, uint64(1), f.store.metrics[key].SystemMessages)

	_, err = f.conversations.PostSystemMessage(ctx, 4242, "ghost", nil)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestNormalizeIDs(t *testing.T) {
	assert.Equal(t, []uint64{7, 1, 2}, normalizeIDs([]uint64{1, 2, 1, 0, 7}, 7))
	assert.Equal(t, []uint64{1, 2}, normalizeIDs([]uint64{1, 2}, 0))
	assert.Empty(t, normalizeIDs(nil, 0))
}
