package service

import (
	"context"
	"time"

	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
)

// Read models handed to the presentation layer. Timestamps are ISO-8601;
// viewer-scoped flags are computed per request.

type AttachmentView struct {
	ID        uint64                 `json:"id"`
	Kind      string                 `json:"kind"`
	FileName  string                 `json:"file_name,omitempty"`
	MimeType  string                 `json:"mime_type"`
	Size      int64                  `json:"size"`
	Width     *int                   `json:"width"`
	Height    *int                   `json:"height"`
	Duration  *float64               `json:"duration"`
	Ordering  int                    `json:"ordering"`
	IsPrimary bool                   `json:"is_primary"`
	Inline    bool                   `json:"inline"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type MessageView struct {
	ID             uint64            `json:"id"`
	ConversationID uint64            `json:"conversation_id"`
	Sequence       uint64            `json:"sequence"`
	Type           string            `json:"type"`
	SenderID       *uint64           `json:"sender_id"`
	SenderHandle   string            `json:"sender_handle,omitempty"`
	ReplyToID      *uint64           `json:"reply_to_id,omitempty"`
	Body           *string           `json:"body"`
	Fragments      dbmysql.JSONMap   `json:"fragments,omitempty"`
	Metadata       dbmysql.JSONMap   `json:"metadata,omitempty"`
	VisibleAt      string            `json:"visible_at"`
	CreatedAt      string            `json:"created_at"`
	Deleted        bool              `json:"deleted"`
	DeletedAt      *string           `json:"deleted_at,omitempty"`
	Attachments    []AttachmentView  `json:"attachments"`
	Reactions      []ReactionSummary `json:"reactions"`
	CanDelete      bool              `json:"can_delete"`
	CanUndo        bool              `json:"can_undo"`
}

type ParticipantView struct {
	UserID            uint64  `json:"user_id"`
	Role              string  `json:"role"`
	JoinedAt          string  `json:"joined_at"`
	LeftAt            *string `json:"left_at,omitempty"`
	LastReadMessageID *uint64 `json:"last_read_message_id,omitempty"`
	LastReadAt        *string `json:"last_read_at,omitempty"`
}

type ConversationView struct {
	ID               uint64            `json:"id"`
	Token            string            `json:"token"`
	Type             string            `json:"type"`
	Subject          string            `json:"subject,omitempty"`
	ParticipantCount int               `json:"participant_count"`
	MessageCount     uint64            `json:"message_count"`
	LastMessageID    *uint64           `json:"last_message_id,omitempty"`
	LastMessageAt    *string           `json:"last_message_at,omitempty"`
	CreatedAt        string            `json:"created_at"`
	Participants     []ParticipantView `json:"participants,omitempty"`
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func isoTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := isoTime(*t)
	return &s
}

// RenderMessage builds the viewer-scoped message read model. A deleted
// message keeps its stored body, but the view nulls it out for everyone;
// privileged surfaces (moderation) read the row directly.
func RenderMessage(ctx context.Context, msg *dbmysql.Message, viewerID uint64, auth common.Authorizer) MessageView {
	view := MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sequence:       msg.Sequence,
		Type:           string(msg.Type),
		SenderID:       msg.SenderID,
		ReplyToID:      msg.ReplyToID,
		Fragments:      msg.Fragments,
		Metadata:       msg.Metadata,
		VisibleAt:      isoTime(msg.VisibleAt),
		CreatedAt:      isoTime(msg.CreatedAt),
		Deleted:        msg.Deleted(),
		DeletedAt:      isoTimePtr(msg.DeletedAt),
		Attachments:    make([]AttachmentView, 0, len(msg.Attachments)),
		Reactions:      SummarizeReactions(reactionPtrs(msg.Reactions), viewerID),
	}

	if msg.Sender != nil {
		view.SenderHandle = msg.Sender.Handle
	}
	if !msg.Deleted() {
		body := msg.Body
		view.Body = &body
	}

	for _, att := range msg.Attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			ID:        att.ID,
			Kind:      att.Kind.String(),
			FileName:  att.FileName,
			MimeType:  att.MimeType,
			Size:      att.Size,
			Width:     att.Width,
			Height:    att.Height,
			Duration:  att.Duration,
			Ordering:  att.Ordering,
			IsPrimary: att.IsPrimary,
			Inline:    att.Inline,
			Metadata:  att.Metadata,
		})
	}

	if auth != nil {
		if ok, err := auth.Can(ctx, viewerID, common.ActionDelete, msg); err == nil {
			view.CanDelete = ok
		}
		if ok, err := auth.Can(ctx, viewerID, common.ActionUndo, msg); err == nil {
			view.CanUndo = ok
		}
	}
	return view
}

func RenderConversation(conv *dbmysql.Conversation, participants []*dbmysql.ConversationParticipant) ConversationView {
	view := ConversationView{
		ID:               conv.ID,
		Token:            conv.Token,
		Type:             string(conv.Type),
		Subject:          conv.Subject,
		ParticipantCount: conv.ParticipantCount,
		MessageCount:     conv.MessageCount,
		LastMessageID:    conv.LastMessageID,
		LastMessageAt:    isoTimePtr(conv.LastMessageAt),
		CreatedAt:        isoTime(conv.CreatedAt),
	}
	for _, p := range participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:            p.UserID,
			Role:              string(p.Role),
			JoinedAt:          isoTime(p.JoinedAt),
			LeftAt:            isoTimePtr(p.LeftAt),
			LastReadMessageID: p.LastReadMessageID,
			LastReadAt:        isoTimePtr(p.LastReadAt),
		})
	}
	return view
}

func reactionPtrs(rows []dbmysql.MessageReaction) []*dbmysql.MessageReaction {
	out := make([]*dbmysql.MessageReaction, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
