package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"goconverse/internal/dbmysql"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *dbmysql.Message) error
	Save(ctx context.Context, msg *dbmysql.Message) error
	ByID(ctx context.Context, id uint64) (*dbmysql.Message, error)

	// ByIDHydrated loads the message with sender, attachments and
	// reactions eagerly populated, for the read model.
	ByIDHydrated(ctx context.Context, id uint64) (*dbmysql.Message, error)

	History(ctx context.Context, convID uint64, limit int) ([]*dbmysql.Message, error)
	CreateAttachment(ctx context.Context, att *dbmysql.MessageAttachment) error
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, msg *dbmysql.Message) error {
	return translate(dbFrom(ctx, r.db).Create(msg).Error)
}

func (r *messageRepo) Save(ctx context.Context, msg *dbmysql.Message) error {
	return translate(dbFrom(ctx, r.db).Save(msg).Error)
}

func (r *messageRepo) ByID(ctx context.Context, id uint64) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	if err := dbFrom(ctx, r.db).First(&msg, id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (r *messageRepo) ByIDHydrated(ctx context.Context, id uint64) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	err := dbFrom(ctx, r.db).
		Preload("Sender").
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordering ASC")
		}).
		Preload("Reactions").
		First(&msg, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (r *messageRepo) History(ctx context.Context, convID uint64, limit int) ([]*dbmysql.Message, error) {
	var messages []*dbmysql.Message
	q := dbFrom(ctx, r.db).
		Where("conversation_id = ?", convID).
		Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, translate(err)
	}
	return messages, nil
}

func (r *messageRepo) CreateAttachment(ctx context.Context, att *dbmysql.MessageAttachment) error {
	return translate(dbFrom(ctx, r.db).Create(att).Error)
}

// IsNotFound reports whether err is the driver's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
