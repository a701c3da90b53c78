package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"goconverse/internal/dbmysql"
)

type MetricRepository interface {
	// Increment upserts the (day, conversation, user) rollup row and adds
	// the deltas to its counters in a single atomic statement. Never
	// read-modify-write: concurrent increments must all land.
	Increment(ctx context.Context, day time.Time, conversationID, userID uint64, deltas dbmysql.MetricDeltas) error
}

type metricRepo struct {
	db *gorm.DB
}

func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &metricRepo{db: db}
}

func (r *metricRepo) Increment(ctx context.Context, day time.Time, conversationID, userID uint64, deltas dbmysql.MetricDeltas) error {
	row := dbmysql.MessageMetric{
		Day:             day.Truncate(24 * time.Hour),
		ConversationID:  conversationID,
		UserID:          userID,
		MessagesSent:    deltas.MessagesSent,
		AttachmentsSent: deltas.AttachmentsSent,
		ReactionsAdded:  deltas.ReactionsAdded,
		SystemMessages:  deltas.SystemMessages,
	}

	err := dbFrom(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "day"}, {Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"messages_sent":    gorm.Expr("messages_sent + ?", deltas.MessagesSent),
				"attachments_sent": gorm.Expr("attachments_sent + ?", deltas.AttachmentsSent),
				"reactions_added":  gorm.Expr("reactions_added + ?", deltas.ReactionsAdded),
				"system_messages":  gorm.Expr("system_messages + ?", deltas.SystemMessages),
			}),
		}).
		Create(&row).Error
	return translate(err)
}
