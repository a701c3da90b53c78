package dbmysql

import (
	"time"
)

type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
	ConversationTypeSystem ConversationType = "system"
)

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleMember ParticipantRole = "member"
)

type Conversation struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string           `gorm:"column:token;uniqueIndex;size:26;not null" json:"token"`
	Type      ConversationType `gorm:"column:type;type:enum('direct','group','system');not null" json:"type"`
	Subject   string           `gorm:"column:subject;size:255" json:"subject,omitempty"`
	CreatedBy uint64           `gorm:"column:created_by;index" json:"created_by"`

	// Denormalized counters, maintained only inside the conversation's
	// locked transaction.
	ParticipantCount int        `gorm:"column:participant_count;default:0" json:"participant_count"`
	MessageCount     uint64     `gorm:"column:message_count;default:0" json:"message_count"`
	LastMessageID    *uint64    `gorm:"column:last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt    *time.Time `gorm:"column:last_message_at" json:"last_message_at,omitempty"`

	Settings   JSONMap    `gorm:"column:settings" json:"settings,omitempty"`
	Metadata   JSONMap    `gorm:"column:metadata" json:"metadata,omitempty"`
	ArchivedAt *time.Time `gorm:"column:archived_at" json:"archived_at,omitempty"`
	MutedAt    *time.Time `gorm:"column:muted_at" json:"muted_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// ConversationParticipant is a user's membership row. Leaving sets LeftAt
// instead of deleting the row so a re-join can restore it.
type ConversationParticipant struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64          `gorm:"column:conversation_id;not null;index:idx_conv_user,unique" json:"conversation_id"`
	UserID         uint64          `gorm:"column:user_id;not null;index:idx_conv_user,unique" json:"user_id"`
	Role           ParticipantRole `gorm:"column:role;type:enum('owner','member');default:'member'" json:"role"`

	JoinedAt time.Time  `gorm:"column:joined_at;not null" json:"joined_at"`
	LeftAt   *time.Time `gorm:"column:left_at" json:"left_at,omitempty"`

	LastReadMessageID *uint64    `gorm:"column:last_read_message_id" json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `gorm:"column:last_read_at" json:"last_read_at,omitempty"`
	MutedUntil        *time.Time `gorm:"column:muted_until" json:"muted_until,omitempty"`

	Settings JSONMap `gorm:"column:settings" json:"settings,omitempty"`
	Metadata JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// Active reports whether the participant has not left.
func (p *ConversationParticipant) Active() bool {
	return p.LeftAt == nil
}

// IsDirect reports whether the conversation is a two-party direct thread.
func (c *Conversation) IsDirect() bool {
	return c.Type == ConversationTypeDirect
}
