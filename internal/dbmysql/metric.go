package dbmysql

import "time"

// MessageMetric is a daily rollup row. Conversation and user may be zero
// for aggregate rows; the composite unique index makes the increment an
// upsert target.
type MessageMetric struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Day            time.Time `gorm:"column:day;type:date;not null;index:idx_metric_key,unique" json:"day"`
	ConversationID uint64    `gorm:"column:conversation_id;not null;default:0;index:idx_metric_key,unique" json:"conversation_id"`
	UserID         uint64    `gorm:"column:user_id;not null;default:0;index:idx_metric_key,unique" json:"user_id"`

	MessagesSent    uint64 `gorm:"column:messages_sent;default:0" json:"messages_sent"`
	AttachmentsSent uint64 `gorm:"column:attachments_sent;default:0" json:"attachments_sent"`
	ReactionsAdded  uint64 `gorm:"column:reactions_added;default:0" json:"reactions_added"`
	SystemMessages  uint64 `gorm:"column:system_messages;default:0" json:"system_messages"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// MetricDeltas carries the increments for one upsert.
type MetricDeltas struct {
	MessagesSent    uint64
	AttachmentsSent uint64
	ReactionsAdded  uint64
	SystemMessages  uint64
}
