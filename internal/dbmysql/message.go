package dbmysql

import (
	"time"
)

type MessageType string

const (
	MessageTypeMessage MessageType = "message"
	MessageTypeSystem  MessageType = "system"
)

type Message struct {
	ID             uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64      `gorm:"column:conversation_id;not null;index;index:idx_conv_seq,unique" json:"conversation_id"`
	SenderID       *uint64     `gorm:"column:sender_id;index" json:"sender_id,omitempty"` // nil = system message
	ReplyToID      *uint64     `gorm:"column:reply_to_id;index" json:"reply_to_id,omitempty"`
	Type           MessageType `gorm:"column:type;type:enum('message','system');default:'message'" json:"type"`

	// Sequence is the per-conversation ordinal, assigned as
	// message_count+1 while the conversation row is locked.
	Sequence uint64 `gorm:"column:sequence;not null;index:idx_conv_seq,unique" json:"sequence"`

	Body      string  `gorm:"column:body;type:text" json:"body"`
	Fragments JSONMap `gorm:"column:fragments" json:"fragments,omitempty"`
	Metadata  JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`

	VisibleAt     time.Time  `gorm:"column:visible_at;not null" json:"visible_at"`
	UndoExpiresAt *time.Time `gorm:"column:undo_expires_at" json:"undo_expires_at,omitempty"`

	// Soft-delete markers; undo clears all three.
	DeletedBy  *uint64    `gorm:"column:deleted_by" json:"deleted_by,omitempty"`
	DeletedAt  *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	RedactedAt *time.Time `gorm:"column:redacted_at" json:"redacted_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Sender      *User               `gorm:"foreignKey:SenderID;references:UserID" json:"sender,omitempty"`
	ReplyTo     *Message            `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	Attachments []MessageAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
	Reactions   []MessageReaction   `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// Deleted reports whether the soft-delete marker is set.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystem || m.SenderID == nil
}

type MessageAttachment struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID  uint64    `gorm:"column:message_id;not null;index" json:"message_id"`
	UploaderID uint64    `gorm:"column:uploader_id;not null" json:"uploader_id"`
	Kind       MediaKind `gorm:"column:kind;type:enum('image','video','audio','file');not null" json:"kind"`

	Disk     string `gorm:"column:disk;size:32;not null" json:"disk"`
	Path     string `gorm:"column:path;size:512;not null" json:"path"`
	FileName string `gorm:"column:file_name;size:255" json:"file_name"`
	MimeType string `gorm:"column:mime_type;size:128;not null" json:"mime_type"`
	Size     int64  `gorm:"column:size" json:"size"`

	Width    *int     `gorm:"column:width" json:"width,omitempty"`
	Height   *int     `gorm:"column:height" json:"height,omitempty"`
	Duration *float64 `gorm:"column:duration" json:"duration,omitempty"` // seconds

	Ordering  int     `gorm:"column:ordering;default:0" json:"ordering"`
	IsPrimary bool    `gorm:"column:is_primary;default:false" json:"is_primary"`
	Inline    bool    `gorm:"column:inline;default:false" json:"inline"`
	Metadata  JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
