package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconverse/internal/dbmysql"
)

func TestRenderMessageNullsDeletedBody(t *testing.T) {
	f := newFixture()
	users := f.seedUsers(2)
	conv := f.seedGroup(users[0].UserID, users[1].UserID)
	ctx := context.Background()

	msg, err := f.messaging.Send(ctx, users[0].UserID, conv.ID, SendInput{Body: "visible"})
	require.NoError(t, err)

	view := RenderMessage(ctx, msg, users[1].UserID, f.auth)
	require.NotNil(t, view.Body)
	assert.Equal(t, "visible", *view.Body)
	assert.False(t, view.Deleted)
	assert.False(t, view.CanDelete, "plain member cannot delete someone else's message")
	assert.False(t, view.CanUndo)

	senderView := RenderMessage(ctx, msg, users[0].UserID, f.auth)
	assert.True(t, senderView.CanDelete)
	assert.True(t, senderView.CanUndo, "inside the undo window")

	deleted, err := f.messaging.Delete(ctx, users[0].UserID, msg.ID)
	require.NoError(t, err)

	gone := RenderMessage(ctx, deleted, users[1].UserID, f.auth)
	assert.Nil(t, gone.Body, "deleted body is nulled for every viewer")
	assert.True(t, gone.Deleted)
	require.NotNil(t, gone.DeletedAt)
}

func TestRenderMessageViews(t *testing.T) {
	width, height := 4, 3
	sender := uint64(9)
	msg := &dbmysql.Message{
		ID:             21,
		ConversationID: 3,
		Sequence:       7,
		Type:           dbmysql.MessageTypeMessage,
		SenderID:       &sender,
		Sender:         &dbmysql.User{UserID: sender, Handle: "ann"},
		Body:           "with stuff",
		VisibleAt:      time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
		Attachments: []dbmysql.MessageAttachment{
			{ID: 1, Kind: dbmysql.MediaKindImage, MimeType: "image/png", Width: &width, Height: &height, IsPrimary: true},
		},
		Reactions: []dbmysql.MessageReaction{
			{ID: 1, MessageID: 21, UserID: 5, Emoji: "👍"},
			{ID: 2, MessageID: 21, UserID: 9, Emoji: "👍"},
		},
	}

	view := RenderMessage(context.Background(), msg, 5, nil)
	assert.Equal(t, "ann", view.SenderHandle)
	assert.Equal(t, "2025-06-01T08:30:00Z", view.VisibleAt)
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, "image", view.Attachments[0].Kind)
	require.Len(t, view.Reactions, 1)
	assert.Equal(t, 2, view.Reactions[0].Count)
	assert.True(t, view.Reactions[0].Reacted)
}

func TestRenderConversation(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	leftAt := now.Add(time.Hour)
	lastID := uint64(44)

	view := RenderConversation(&dbmysql.Conversation{
		ID:               2,
		Token:            "01HZXW6A7N3YCK8QRT2M5B9D4E",
		Type:             dbmysql.ConversationTypeGroup,
		Subject:          "standup",
		ParticipantCount: 2,
		MessageCount:     44,
		LastMessageID:    &lastID,
		LastMessageAt:    &now,
		CreatedAt:        now,
	}, []*dbmysql.ConversationParticipant{
		{UserID: 1, Role: dbmysql.RoleOwner, JoinedAt: now},
		{UserID: 2, Role: dbmysql.RoleMember, JoinedAt: now, LeftAt: &leftAt},
	})

	assert.Equal(t, "group", view.Type)
	assert.Equal(t, uint64(44), view.MessageCount)
	require.Len(t, view.Participants, 2)
	assert.Equal(t, "owner", view.Participants[0].Role)
	assert.Nil(t, view.Participants[0].LeftAt)
	require.NotNil(t, view.Participants[1].LeftAt)
	assert.Equal(t, "2025-06-01T11:00:00Z", *view.Participants[1].LeftAt)
}
