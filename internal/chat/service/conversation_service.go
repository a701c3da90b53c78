package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
	"goconverse/internal/logger"
)

// ConversationAttrs carries optional creation attributes.
type ConversationAttrs struct {
	Subject  string          `json:"subject,omitempty"`
	Settings dbmysql.JSONMap `json:"settings,omitempty"`
	Metadata dbmysql.JSONMap `json:"metadata,omitempty"`
}

type ConversationService interface {
	// StartDirect returns the existing direct conversation between the two
	// users when both are still active members, otherwise creates one.
	StartDirect(ctx context.Context, initiatorID, recipientID uint64, attrs ConversationAttrs) (*dbmysql.Conversation, error)
	StartGroup(ctx context.Context, initiatorID uint64, participantIDs []uint64, attrs ConversationAttrs) (*dbmysql.Conversation, error)
	AddParticipants(ctx context.Context, conversationID, actorID uint64, userIDs []uint64) ([]*dbmysql.ConversationParticipant, error)
	Leave(ctx context.Context, conversationID, userID uint64) error
	MarkRead(ctx context.Context, conversationID, userID uint64, messageID *uint64) error
	PostSystemMessage(ctx context.Context, conversationID uint64, body string, metadata dbmysql.JSONMap) (*dbmysql.Message, error)
}

type conversationService struct {
	tx        repository.TxManager
	convs     repository.ConversationRepository
	messages  repository.MessageRepository
	users     repository.UserRepository
	auth      common.Authorizer
	analytics AnalyticsService
	bus       common.EventBus
	clock     common.Clock
}

func NewConversationService(
	tx repository.TxManager,
	convs repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	auth common.Authorizer,
	analytics AnalyticsService,
	bus common.EventBus,
	clock common.Clock,
) ConversationService {
	return &conversationService{
		tx:        tx,
		convs:     convs,
		messages:  messages,
		users:     users,
		auth:      auth,
		analytics: analytics,
		bus:       bus,
		clock:     clock,
	}
}

func newConversationToken() string {
	return ulid.Make().String()
}

func (s *conversationService) StartDirect(ctx context.Context, initiatorID, recipientID uint64, attrs ConversationAttrs) (*dbmysql.Conversation, error) {
	if err := common.ValidateSubject(attrs.Subject); err != nil {
		return nil, err
	}
	ok, err := s.auth.CanMessage(ctx, initiatorID, recipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrForbidden.WithDetail("recipient does not accept messages from initiator")
	}

	existing, err := s.convs.FindDirectBetween(ctx, initiatorID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	conv := &dbmysql.Conversation{
		Token:     newConversationToken(),
		Type:      dbmysql.ConversationTypeDirect,
		Subject:   attrs.Subject,
		CreatedBy: initiatorID,
		Settings:  attrs.Settings,
		Metadata:  attrs.Metadata,
	}

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.convs.Create(ctx, conv); err != nil {
			return err
		}
		for _, userID := range []uint64{initiatorID, recipientID} {
			p := &dbmysql.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         userID,
				Role:           dbmysql.RoleMember,
				JoinedAt:       now,
			}
			if err := s.convs.CreateParticipant(ctx, p); err != nil {
				return err
			}
		}
		count, err := s.convs.RefreshParticipantCount(ctx, conv.ID)
		if err != nil {
			return err
		}
		conv.ParticipantCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) StartGroup(ctx context.Context, initiatorID uint64, participantIDs []uint64, attrs ConversationAttrs) (*dbmysql.Conversation, error) {
	if err := common.ValidateSubject(attrs.Subject); err != nil {
		return nil, err
	}
	ids := normalizeIDs(participantIDs, initiatorID)
	if len(ids) < 2 {
		return nil, common.ErrInvalidArgument.WithDetail("a group needs at least two distinct participants")
	}

	users, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(users) != len(ids) {
		return nil, common.ErrInvalidArgument.WithDetail("one or more participants do not exist")
	}

	for _, id := range ids {
		if id == initiatorID {
			continue
		}
		blocked, err := s.users.HasBlockRelationship(ctx, initiatorID, id)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, common.ErrForbidden.WithDetail("a participant has a block relationship with the initiator")
		}
	}

	now := s.clock.Now()
	conv := &dbmysql.Conversation{
		Token:     newConversationToken(),
		Type:      dbmysql.ConversationTypeGroup,
		Subject:   attrs.Subject,
		CreatedBy: initiatorID,
		Settings:  attrs.Settings,
		Metadata:  attrs.Metadata,
	}

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if err := s.convs.Create(ctx, conv); err != nil {
			return err
		}
		for _, userID := range ids {
			role := dbmysql.RoleMember
			if userID == initiatorID {
				role = dbmysql.RoleOwner
			}
			p := &dbmysql.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         userID,
				Role:           role,
				JoinedAt:       now,
			}
			if err := s.convs.CreateParticipant(ctx, p); err != nil {
				return err
			}
		}
		count, err := s.convs.RefreshParticipantCount(ctx, conv.ID)
		if err != nil {
			return err
		}
		conv.ParticipantCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) AddParticipants(ctx context.Context, conversationID, actorID uint64, userIDs []uint64) ([]*dbmysql.ConversationParticipant, error) {
	conv, err := s.convs.ByID(ctx, conversationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.ErrNotFound.WithDetail("conversation not found")
		}
		return nil, err
	}
	if conv.IsDirect() {
		return nil, common.ErrInvalidArgument.WithDetail("cannot add participants to a direct conversation")
	}

	var ids []uint64
	for _, id := range normalizeIDs(userIDs, 0) {
		if id != actorID && id != 0 {
			ids = append(ids, id)
		}
	}

	users, err := s.users.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var affected []*dbmysql.ConversationParticipant
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		if _, err := s.convs.LockByID(ctx, conv.ID); err != nil {
			return err
		}
		for _, user := range users {
			existing, err := s.convs.ParticipantFor(ctx, conv.ID, user.UserID)
			if err != nil {
				return err
			}
			switch {
			case existing == nil:
				p := &dbmysql.ConversationParticipant{
					ConversationID: conv.ID,
					UserID:         user.UserID,
					Role:           dbmysql.RoleMember,
					JoinedAt:       now,
				}
				if err := s.convs.CreateParticipant(ctx, p); err != nil {
					return err
				}
				affected = append(affected, p)
			case existing.Active():
				// Already a member: no-op for this id.
			default:
				// Re-join: clear the leave marker, reset joined_at.
				existing.LeftAt = nil
				existing.JoinedAt = now
				if err := s.convs.SaveParticipant(ctx, existing); err != nil {
					return err
				}
				affected = append(affected, existing)
			}
		}
		_, err := s.convs.RefreshParticipantCount(ctx, conv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

func (s *conversationService) Leave(ctx context.Context, conversationID, userID uint64) error {
	return s.tx.Transact(ctx, func(ctx context.Context) error {
		if _, err := s.convs.LockByID(ctx, conversationID); err != nil {
			if repository.IsNotFound(err) {
				return common.ErrNotFound.WithDetail("conversation not found")
			}
			return err
		}
		p, err := s.convs.ParticipantFor(ctx, conversationID, userID)
		if err != nil {
			return err
		}
		if p == nil || !p.Active() {
			return nil
		}
		now := s.clock.Now()
		p.LeftAt = &now
		if err := s.convs.SaveParticipant(ctx, p); err != nil {
			return err
		}
		_, err = s.convs.RefreshParticipantCount(ctx, conversationID)
		return err
	})
}

func (s *conversationService) MarkRead(ctx context.Context, conversationID, userID uint64, messageID *uint64) error {
	p, err := s.convs.ParticipantFor(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if p == nil || !p.Active() {
		return common.ErrNotFound.WithDetail("no active participant row for user")
	}

	now := s.clock.Now()
	p.LastReadMessageID = messageID
	p.LastReadAt = &now
	if err := s.convs.SaveParticipant(ctx, p); err != nil {
		return err
	}

	event := common.Event{
		Name:           common.EventMessageRead,
		ConversationID: conversationID,
		ActorID:        userID,
		OccurredAt:     now,
	}
	if messageID != nil {
		event.MessageID = *messageID
	}
	s.bus.Publish(event)
	return nil
}

func (s *conversationService) PostSystemMessage(ctx context.Context, conversationID uint64, body string, metadata dbmysql.JSONMap) (*dbmysql.Message, error) {
	now := s.clock.Now()
	var msg *dbmysql.Message

	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		conv, err := s.convs.LockByID(ctx, conversationID)
		if err != nil {
			if repository.IsNotFound(err) {
				return common.ErrNotFound.WithDetail("conversation not found")
			}
			return err
		}

		msg = &dbmysql.Message{
			ConversationID: conv.ID,
			Type:           dbmysql.MessageTypeSystem,
			Sequence:       conv.MessageCount + 1,
			Body:           body,
			Metadata:       metadata,
			VisibleAt:      now,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}

		conv.MessageCount = msg.Sequence
		conv.LastMessageID = &msg.ID
		conv.LastMessageAt = &now
		return s.convs.Save(ctx, conv)
	})
	if err != nil {
		return nil, err
	}

	s.analytics.RecordSystemMessage(ctx, conversationID)
	s.bus.Publish(common.Event{
		Name:           common.EventMessageSent,
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Message:        msg,
		OccurredAt:     now,
	})
	logger.Debug("system message posted",
		zap.Uint64("conversation_id", conversationID),
		zap.Uint64("sequence", msg.Sequence))
	return msg, nil
}

// normalizeIDs dedupes and, when ensure is nonzero, guarantees it is in the
// result.
func normalizeIDs(ids []uint64, ensure uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids)+1)
	out := make([]uint64, 0, len(ids)+1)
	if ensure != 0 {
		seen[ensure] = true
		out = append(out, ensure)
	}
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
