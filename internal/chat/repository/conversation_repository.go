package repository

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goconverse/internal/dbmysql"
)

type ConversationRepository interface {
	Create(ctx context.Context, conv *dbmysql.Conversation) error
	Save(ctx context.Context, conv *dbmysql.Conversation) error
	ByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error)
	ByToken(ctx context.Context, token string) (*dbmysql.Conversation, error)

	// LockByID acquires the conversation row FOR UPDATE. Must be called
	// inside TxManager.Transact; the lock is the serialization point for
	// sequence assignment and counter recomputation.
	LockByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error)

	// FindDirectBetween returns the direct conversation where both users
	// are active participants, or nil when none exists.
	FindDirectBetween(ctx context.Context, userA, userB uint64) (*dbmysql.Conversation, error)

	Participants(ctx context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error)
	ActiveParticipants(ctx context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error)
	ParticipantFor(ctx context.Context, convID, userID uint64) (*dbmysql.ConversationParticipant, error)
	CreateParticipant(ctx context.Context, p *dbmysql.ConversationParticipant) error
	SaveParticipant(ctx context.Context, p *dbmysql.ConversationParticipant) error

	// RefreshParticipantCount recomputes participant_count from rows with
	// null left_at and writes it back. Runs inside the caller's
	// transaction alongside the membership mutation.
	RefreshParticipantCount(ctx context.Context, convID uint64) (int, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, conv *dbmysql.Conversation) error {
	return translate(dbFrom(ctx, r.db).Create(conv).Error)
}

func (r *conversationRepo) Save(ctx context.Context, conv *dbmysql.Conversation) error {
	return translate(dbFrom(ctx, r.db).Save(conv).Error)
}

func (r *conversationRepo) ByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	if err := dbFrom(ctx, r.db).First(&conv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *conversationRepo) ByToken(ctx context.Context, token string) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	if err := dbFrom(ctx, r.db).Where("token = ?", token).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *conversationRepo) LockByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	err := dbFrom(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&conv, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *conversationRepo) FindDirectBetween(ctx context.Context, userA, userB uint64) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	err := dbFrom(ctx, r.db).
		Joins("JOIN conversation_participants pa ON pa.conversation_id = conversations.id AND pa.user_id = ? AND pa.left_at IS NULL", userA).
		Joins("JOIN conversation_participants pb ON pb.conversation_id = conversations.id AND pb.user_id = ? AND pb.left_at IS NULL", userB).
		Where("conversations.type = ?", dbmysql.ConversationTypeDirect).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(translate(err), "find direct conversation")
	}
	return &conv, nil
}

func (r *conversationRepo) Participants(ctx context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error) {
	var rows []*dbmysql.ConversationParticipant
	err := dbFrom(ctx, r.db).
		Where("conversation_id = ?", convID).
		Find(&rows).Error
	return rows, translate(err)
}

func (r *conversationRepo) ActiveParticipants(ctx context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error) {
	var rows []*dbmysql.ConversationParticipant
	err := dbFrom(ctx, r.db).
		Where("conversation_id = ? AND left_at IS NULL", convID).
		Find(&rows).Error
	return rows, translate(err)
}

func (r *conversationRepo) ParticipantFor(ctx context.Context, convID, userID uint64) (*dbmysql.ConversationParticipant, error) {
	var p dbmysql.ConversationParticipant
	err := dbFrom(ctx, r.db).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *conversationRepo) CreateParticipant(ctx context.Context, p *dbmysql.ConversationParticipant) error {
	return translate(dbFrom(ctx, r.db).Create(p).Error)
}

func (r *conversationRepo) SaveParticipant(ctx context.Context, p *dbmysql.ConversationParticipant) error {
	return translate(dbFrom(ctx, r.db).Save(p).Error)
}

func (r *conversationRepo) RefreshParticipantCount(ctx context.Context, convID uint64) (int, error) {
	db := dbFrom(ctx, r.db)

	var count int64
	err := db.Model(&dbmysql.ConversationParticipant{}).
		Where("conversation_id = ? AND left_at IS NULL", convID).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(translate(err), "count active participants")
	}

	err = db.Model(&dbmysql.Conversation{}).
		Where("id = ?", convID).
		Update("participant_count", count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(translate(err), "update participant_count")
	}
	return int(count), nil
}
