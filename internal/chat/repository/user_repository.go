package repository

import (
	"context"

	"gorm.io/gorm"

	"goconverse/internal/dbmysql"
)

type UserRepository interface {
	ByID(ctx context.Context, id uint64) (*dbmysql.User, error)
	ByIDs(ctx context.Context, ids []uint64) ([]*dbmysql.User, error)

	// HasBlockRelationship is symmetric: a block row in either direction
	// counts.
	HasBlockRelationship(ctx context.Context, userA, userB uint64) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) ByID(ctx context.Context, id uint64) (*dbmysql.User, error) {
	var user dbmysql.User
	if err := dbFrom(ctx, r.db).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepo) ByIDs(ctx context.Context, ids []uint64) ([]*dbmysql.User, error) {
	var users []*dbmysql.User
	if len(ids) == 0 {
		return users, nil
	}
	err := dbFrom(ctx, r.db).Where("user_id IN ?", ids).Find(&users).Error
	return users, translate(err)
}

func (r *userRepo) HasBlockRelationship(ctx context.Context, userA, userB uint64) (bool, error) {
	var count int64
	err := dbFrom(ctx, r.db).Model(&dbmysql.Block{}).
		Where("(user_id = ? AND blocked_user_id = ?) OR (user_id = ? AND blocked_user_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *userRepo) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var count int64
	err := dbFrom(ctx, r.db).Model(&dbmysql.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}
