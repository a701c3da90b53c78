package service

import (
	"context"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
)

// ReactionSummary is one emoji|variant group on a message.
type ReactionSummary struct {
	Emoji   string  `json:"emoji"`
	Variant *string `json:"variant"`
	Count   int     `json:"count"`
	Reacted bool    `json:"reacted"` // whether the viewer is among the reactors
}

type ReactionService interface {
	// Toggle adds the (actor, emoji, variant) reaction if absent, removes
	// it if present, and returns the fresh summary for the message.
	Toggle(ctx context.Context, actorID, messageID uint64, emoji, variant string) ([]ReactionSummary, error)
	Summary(ctx context.Context, messageID, viewerID uint64) ([]ReactionSummary, error)
}

type reactionService struct {
	tx        repository.TxManager
	messages  repository.MessageRepository
	reactions repository.ReactionRepository
	auth      common.Authorizer
	analytics AnalyticsService
}

func NewReactionService(
	tx repository.TxManager,
	messages repository.MessageRepository,
	reactions repository.ReactionRepository,
	auth common.Authorizer,
	analytics AnalyticsService,
) ReactionService {
	return &reactionService{
		tx:        tx,
		messages:  messages,
		reactions: reactions,
		auth:      auth,
		analytics: analytics,
	}
}

func (s *reactionService) Toggle(ctx context.Context, actorID, messageID uint64, emoji, variant string) ([]ReactionSummary, error) {
	if err := common.ValidateEmoji(emoji); err != nil {
		return nil, err
	}

	msg, err := s.messages.ByID(ctx, messageID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.ErrNotFound.WithDetail("message not found")
		}
		return nil, err
	}

	ok, err := s.auth.Can(ctx, actorID, common.ActionView, msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrForbidden.WithDetail("actor cannot view message")
	}

	added := false
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		existing, err := s.reactions.FindForUpdate(ctx, messageID, actorID, emoji, variant)
		if err != nil {
			return err
		}
		if existing != nil {
			return s.reactions.Delete(ctx, existing.ID)
		}
		added = true
		return s.reactions.Create(ctx, &dbmysql.MessageReaction{
			MessageID: messageID,
			UserID:    actorID,
			Emoji:     emoji,
			Variant:   variant,
		})
	})
	if err != nil {
		return nil, err
	}

	if added {
		s.analytics.RecordReaction(ctx, msg.ConversationID, actorID)
	}
	return s.Summary(ctx, messageID, actorID)
}

func (s *reactionService) Summary(ctx context.Context, messageID, viewerID uint64) ([]ReactionSummary, error) {
	rows, err := s.reactions.ForMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return SummarizeReactions(rows, viewerID), nil
}

// SummarizeReactions groups reaction rows by emoji|variant. Group order is
// first-seen order and carries no meaning.
func SummarizeReactions(rows []*dbmysql.MessageReaction, viewerID uint64) []ReactionSummary {
	summaries := make([]ReactionSummary, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		key := row.Emoji + "|" + row.Variant
		i, seen := index[key]
		if !seen {
			var variant *string
			if row.Variant != "" {
				v := row.Variant
				variant = &v
			}
			index[key] = len(summaries)
			i = len(summaries)
			summaries = append(summaries, ReactionSummary{Emoji: row.Emoji, Variant: variant})
		}
		summaries[i].Count++
		if row.UserID == viewerID {
			summaries[i].Reacted = true
		}
	}
	return summaries
}
