package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goconverse/internal/dbmysql"
)

type ReactionRepository interface {
	// FindForUpdate locks the exact (message, user, emoji, variant) row.
	// Returns nil when no such reaction exists.
	FindForUpdate(ctx context.Context, messageID, userID uint64, emoji, variant string) (*dbmysql.MessageReaction, error)
	Create(ctx context.Context, reaction *dbmysql.MessageReaction) error
	Delete(ctx context.Context, id uint64) error
	ForMessage(ctx context.Context, messageID uint64) ([]*dbmysql.MessageReaction, error)
}

type reactionRepo struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepo{db: db}
}

func (r *reactionRepo) FindForUpdate(ctx context.Context, messageID, userID uint64, emoji, variant string) (*dbmysql.MessageReaction, error) {
	var reaction dbmysql.MessageReaction
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("message_id = ? AND user_id = ? AND emoji = ? AND variant = ?",
			messageID, userID, emoji, variant).
		First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &reaction, nil
}

func (r *reactionRepo) Create(ctx context.Context, reaction *dbmysql.MessageReaction) error {
	return translate(dbFrom(ctx, r.db).Create(reaction).Error)
}

func (r *reactionRepo) Delete(ctx context.Context, id uint64) error {
	return translate(dbFrom(ctx, r.db).Delete(&dbmysql.MessageReaction{}, id).Error)
}

func (r *reactionRepo) ForMessage(ctx context.Context, messageID uint64) ([]*dbmysql.MessageReaction, error) {
	var reactions []*dbmysql.MessageReaction
	err := dbFrom(ctx, r.db).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&reactions).Error
	return reactions, translate(err)
}
