package service

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
	"goconverse/internal/logger"
)

const (
	undoWindow     = 5 * time.Minute
	previewRunes   = 80
	defaultContext = 3
)

// SendInput is the payload for one message send.
type SendInput struct {
	Body      string          `json:"body"`
	Fragments dbmysql.JSONMap `json:"fragments,omitempty"`
	Metadata  dbmysql.JSONMap `json:"metadata,omitempty"`
	ReplyToID *uint64         `json:"reply_to_id,omitempty"`

	// Sequence, when positive, overrides the assigned sequence (backfill).
	Sequence  uint64     `json:"sequence,omitempty"`
	VisibleAt *time.Time `json:"visible_at,omitempty"`

	Attachments []AttachmentInput `json:"attachments,omitempty"`
}

type MessageService interface {
	Send(ctx context.Context, senderID, conversationID uint64, input SendInput) (*dbmysql.Message, error)
	Delete(ctx context.Context, actorID, messageID uint64) (*dbmysql.Message, error)
	Undo(ctx context.Context, actorID, messageID uint64) (*dbmysql.Message, error)

	// ThreadContext walks the reply_to chain upward, nearest ancestor
	// first, up to limit hops.
	ThreadContext(ctx context.Context, messageID uint64, limit int) ([]*dbmysql.Message, error)
}

type messageService struct {
	tx        repository.TxManager
	convs     repository.ConversationRepository
	messages  repository.MessageRepository
	users     repository.UserRepository
	auth      common.Authorizer
	attacher  AttachmentService
	analytics AnalyticsService
	bus       common.EventBus
	sink      common.NotificationSink
	clock     common.Clock
}

func NewMessageService(
	tx repository.TxManager,
	convs repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	auth common.Authorizer,
	attacher AttachmentService,
	analytics AnalyticsService,
	bus common.EventBus,
	sink common.NotificationSink,
	clock common.Clock,
) MessageService {
	return &messageService{
		tx:        tx,
		convs:     convs,
		messages:  messages,
		users:     users,
		auth:      auth,
		attacher:  attacher,
		analytics: analytics,
		bus:       bus,
		sink:      sink,
		clock:     clock,
	}
}

// Send runs the delivery pipeline. Sequence assignment, the membership and
// block gates, and every denormalized counter update happen inside one
// transaction holding the conversation row lock; attachment promotion,
// events, notifications and analytics run after commit and are best-effort.
func (s *messageService) Send(ctx context.Context, senderID, conversationID uint64, input SendInput) (*dbmysql.Message, error) {
	if err := common.ValidateMessageBody(input.Body); err != nil {
		return nil, err
	}
	if input.Body == "" && len(input.Fragments) == 0 && len(input.Attachments) == 0 {
		return nil, common.ErrInvalidArgument.WithDetail("message has no content")
	}

	now := s.clock.Now()
	visibleAt := now
	if input.VisibleAt != nil {
		visibleAt = *input.VisibleAt
	}
	undoExpiresAt := now.Add(undoWindow)

	var (
		msg        *dbmysql.Message
		conv       *dbmysql.Conversation
		recipients []uint64
	)

	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		conv, err = s.convs.LockByID(ctx, conversationID)
		if err != nil {
			if repository.IsNotFound(err) {
				return common.ErrNotFound.WithDetail("conversation not found")
			}
			return err
		}

		participants, err := s.convs.ActiveParticipants(ctx, conv.ID)
		if err != nil {
			return err
		}

		var sender *dbmysql.ConversationParticipant
		for _, p := range participants {
			if p.UserID == senderID {
				sender = p
			}
		}
		if sender == nil {
			return common.ErrUnauthorized.WithDetail("sender is not an active participant")
		}

		// A blocked-by-any-recipient send is rejected outright, never
		// partially delivered.
		for _, p := range participants {
			if p.UserID == senderID {
				continue
			}
			blocked, err := s.users.HasBlockRelationship(ctx, senderID, p.UserID)
			if err != nil {
				return err
			}
			if blocked {
				return common.ErrForbidden.WithDetail("a participant has a block relationship with the sender")
			}
			recipients = append(recipients, p.UserID)
		}

		sequence := conv.MessageCount + 1
		if input.Sequence > 0 {
			sequence = input.Sequence
		}

		msg = &dbmysql.Message{
			ConversationID: conv.ID,
			SenderID:       &senderID,
			ReplyToID:      input.ReplyToID,
			Type:           dbmysql.MessageTypeMessage,
			Sequence:       sequence,
			Body:           input.Body,
			Fragments:      input.Fragments,
			Metadata:       input.Metadata,
			VisibleAt:      visibleAt,
			UndoExpiresAt:  &undoExpiresAt,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}

		if sequence > conv.MessageCount {
			conv.MessageCount = sequence
		}
		conv.LastMessageID = &msg.ID
		conv.LastMessageAt = &visibleAt
		if err := s.convs.Save(ctx, conv); err != nil {
			return err
		}

		// The sender has read their own message.
		sender.LastReadMessageID = &msg.ID
		sender.LastReadAt = &now
		return s.convs.SaveParticipant(ctx, sender)
	})
	if err != nil {
		return nil, err
	}

	// Post-commit enrichment; none of this may fail the send.
	attachmentCount := 0
	if len(input.Attachments) > 0 {
		attached := s.attacher.AttachFromTemporary(ctx, msg, conv, senderID, input.Attachments)
		attachmentCount = len(attached)
	}

	hydrated, err := s.messages.ByIDHydrated(ctx, msg.ID)
	if err != nil {
		logger.Warn("message reload failed", zap.Uint64("message_id", msg.ID), zap.Error(err))
		hydrated = msg
	}

	s.bus.Publish(common.Event{
		Name:           common.EventMessageSent,
		ConversationID: conv.ID,
		ActorID:        senderID,
		MessageID:      msg.ID,
		Message:        hydrated,
		OccurredAt:     now,
	})
	s.notify(ctx, conv, hydrated, senderID, recipients)
	s.analytics.RecordMessageSent(ctx, conv.ID, senderID, attachmentCount)

	return hydrated, nil
}

func (s *messageService) notify(ctx context.Context, conv *dbmysql.Conversation, msg *dbmysql.Message, senderID uint64, recipients []uint64) {
	notice := common.NewMessageNotice{
		ConversationID:    conv.ID,
		ConversationToken: conv.Token,
		MessageID:         msg.ID,
		SenderID:          senderID,
		Preview:           truncateRunes(msg.Body, previewRunes),
	}
	for _, userID := range recipients {
		if err := s.sink.NotifyNewMessage(ctx, userID, notice); err != nil {
			logger.Warn("new-message notification failed",
				zap.Uint64("user_id", userID),
				zap.Uint64("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

func (s *messageService) Delete(ctx context.Context, actorID, messageID uint64) (*dbmysql.Message, error) {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.ErrNotFound.WithDetail("message not found")
		}
		return nil, err
	}

	ok, err := s.auth.Can(ctx, actorID, common.ActionDelete, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrUnauthorized.WithDetail("actor may not delete this message")
	}

	now := s.clock.Now()
	msg.DeletedBy = &actorID
	msg.DeletedAt = &now
	msg.RedactedAt = &now
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.bus.Publish(common.Event{
		Name:           common.EventMessageDeleted,
		ConversationID: msg.ConversationID,
		ActorID:        actorID,
		MessageID:      msg.ID,
		Message:        msg,
		OccurredAt:     now,
	})
	return msg, nil
}

// Undo clears the soft-delete markers. It publishes MessageDeleted again:
// listeners treat the event as a generic "message state changed" signal.
func (s *messageService) Undo(ctx context.Context, actorID, messageID uint64) (*dbmysql.Message, error) {
	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.ErrNotFound.WithDetail("message not found")
		}
		return nil, err
	}

	ok, err := s.auth.Can(ctx, actorID, common.ActionUndo, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrUnauthorized.WithDetail("actor may not undo this message")
	}

	msg.DeletedBy = nil
	msg.DeletedAt = nil
	msg.RedactedAt = nil
	if err := s.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	s.bus.Publish(common.Event{
		Name:           common.EventMessageDeleted,
		ConversationID: msg.ConversationID,
		ActorID:        actorID,
		MessageID:      msg.ID,
		Message:        msg,
		OccurredAt:     s.clock.Now(),
	})
	return msg, nil
}

func (s *messageService) ThreadContext(ctx context.Context, messageID uint64, limit int) ([]*dbmysql.Message, error) {
	if limit <= 0 {
		limit = defaultContext
	}

	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.ErrNotFound.WithDetail("message not found")
		}
		return nil, err
	}

	var chain []*dbmysql.Message
	visited := map[uint64]bool{msg.ID: true}
	current := msg
	for len(chain) < limit && current.ReplyToID != nil {
		next := *current.ReplyToID
		if visited[next] {
			// The model should never produce a cycle; bail out if one
			// shows up anyway.
			break
		}
		parent, err := s.messages.ByID(ctx, next)
		if err != nil {
			if repository.IsNotFound(err) {
				break
			}
			return nil, err
		}
		visited[next] = true
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
