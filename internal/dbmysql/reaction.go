package dbmysql

import "time"

// MessageReaction is one user's emoji on one message. The composite unique
// index makes reacting twice with the same tuple a toggle, never a
// duplicate. Variant is stored as "" rather than NULL so the unique index
// behaves under MySQL.
type MessageReaction struct {
	ID        uint64    `gorm:"primaryKey;column:id;autoIncrement" json:"id"`
	MessageID uint64    `gorm:"column:message_id;not null;index:idx_reaction_tuple,unique" json:"message_id"`
	UserID    uint64    `gorm:"column:user_id;not null;index:idx_reaction_tuple,unique" json:"user_id"`
	Emoji     string    `gorm:"column:emoji;size:32;not null;index:idx_reaction_tuple,unique" json:"emoji"`
	Variant   string    `gorm:"column:variant;size:32;not null;default:'';index:idx_reaction_tuple,unique" json:"variant,omitempty"` // e.g. skin-tone modifier
	Metadata  JSONMap   `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
