package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"goconverse/internal/chat/repository"
	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
	"goconverse/internal/logger"
)

// AnalyticsService accumulates daily per-conversation, per-user counters.
// Recording is accounting, not control flow: failures are logged and
// swallowed so they can never abort the write that triggered them.
type AnalyticsService interface {
	RecordMessageSent(ctx context.Context, conversationID, userID uint64, attachments int)
	RecordSystemMessage(ctx context.Context, conversationID uint64)
	RecordReaction(ctx context.Context, conversationID, userID uint64)
}

type analyticsService struct {
	metrics repository.MetricRepository
	clock   common.Clock
}

func NewAnalyticsService(metrics repository.MetricRepository, clock common.Clock) AnalyticsService {
	return &analyticsService{metrics: metrics, clock: clock}
}

func (s *analyticsService) today() time.Time {
	now := s.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *analyticsService) record(ctx context.Context, conversationID, userID uint64, deltas dbmysql.MetricDeltas) {
	if err := s.metrics.Increment(ctx, s.today(), conversationID, userID, deltas); err != nil {
		logger.Warn("metric increment failed",
			zap.Uint64("conversation_id", conversationID),
			zap.Uint64("user_id", userID),
			zap.Error(err))
	}
}

func (s *analyticsService) RecordMessageSent(ctx context.Context, conversationID, userID uint64, attachments int) {
	s.record(ctx, conversationID, userID, dbmysql.MetricDeltas{
		MessagesSent:    1,
		AttachmentsSent: uint64(attachments),
	})
}

func (s *analyticsService) RecordSystemMessage(ctx context.Context, conversationID uint64) {
	s.record(ctx, conversationID, 0, dbmysql.MetricDeltas{SystemMessages: 1})
}

func (s *analyticsService) RecordReaction(ctx context.Context, conversationID, userID uint64) {
	s.record(ctx, conversationID, userID, dbmysql.MetricDeltas{ReactionsAdded: 1})
}
