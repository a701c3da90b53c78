package notif

import (
	"context"

	"go.uber.org/zap"

	"goconverse/internal/common"
	"goconverse/internal/logger"
)

// LogSink is the development NotificationSink: it records the notice and
// does nothing else. Production deployments plug the push gateway in
// behind the same interface.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) NotifyNewMessage(_ context.Context, userID uint64, notice common.NewMessageNotice) error {
	logger.Info("new message notice",
		zap.Uint64("user_id", userID),
		zap.String("conversation_token", notice.ConversationToken),
		zap.Uint64("message_id", notice.MessageID),
		zap.String("preview", notice.Preview))
	return nil
}
