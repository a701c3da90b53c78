package dbmysql

import (
	"time"

	"gorm.io/gorm"
)

// MessagingPolicy is the closed set of "who may message me" preferences.
// Unknown values are treated as deny by the authorizer.
type MessagingPolicy string

const (
	PolicyNoOne                MessagingPolicy = "no-one"
	PolicyEveryone             MessagingPolicy = "everyone"
	PolicyVerified             MessagingPolicy = "verified"
	PolicyFollowing            MessagingPolicy = "following"
	PolicyVerifiedAndFollowing MessagingPolicy = "verified-and-following"
)

type User struct {
	UserID             uint64          `gorm:"primaryKey;column:user_id;autoIncrement" json:"user_id"`
	Handle             string          `gorm:"column:handle;uniqueIndex;size:50;not null" json:"handle"`
	DisplayName        string          `gorm:"column:display_name;size:100" json:"display_name"`
	Verified           bool            `gorm:"column:verified;default:false" json:"verified"`
	MessagingPolicy    MessagingPolicy `gorm:"column:messaging_policy;type:enum('no-one','everyone','verified','following','verified-and-following');default:'everyone'" json:"messaging_policy"`
	SubscriberOverride bool            `gorm:"column:subscriber_override;default:false" json:"subscriber_override"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Block is one direction of a block relationship. The block check is
// symmetric: a row in either direction blocks messaging both ways.
type Block struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64    `gorm:"column:user_id;not null;index:idx_block_pair,unique" json:"user_id"`
	BlockedUserID uint64    `gorm:"column:blocked_user_id;not null;index:idx_block_pair,unique" json:"blocked_user_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

type Follow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FollowerID uint64    `gorm:"column:follower_id;not null;index:idx_follow_pair,unique" json:"follower_id"`
	FolloweeID uint64    `gorm:"column:followee_id;not null;index:idx_follow_pair,unique" json:"followee_id"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
