package common

import (
	"context"
	"time"

	"goconverse/internal/dbmysql"
)

// Authorizer is the capability gate consulted before message operations.
// CanMessage evaluates block state, self-message prohibition and the
// target's messaging policy; Can covers per-message actions.
type Authorizer interface {
	CanMessage(ctx context.Context, viewerID, targetID uint64) (bool, error)
	Can(ctx context.Context, actorID uint64, action Action, msg *dbmysql.Message) (bool, error)
}

type Action string

const (
	ActionView   Action = "view"
	ActionDelete Action = "delete"
	ActionUndo   Action = "undo"
)

// SubscriptionChecker reports whether viewer holds an active subscription
// to target. Consulted only when the subscriber-override flag is enabled.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, viewerID, targetID uint64) (bool, error)
}

// TempUploadStore promotes a temporary upload into permanent storage under
// destPrefix. Returns the permanent path, or "" when the upload id does
// not resolve.
type TempUploadStore interface {
	Promote(ctx context.Context, uploadID, destPrefix, fileName, visibility string) (string, error)
}

// ObjectStorage is the read side of the permanent attachment store.
type ObjectStorage interface {
	URL(path string) string
	Size(ctx context.Context, path string) (int64, error)
	MimeType(ctx context.Context, path string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

// NewMessageNotice is the fire-and-forget payload handed to the push layer.
type NewMessageNotice struct {
	ConversationID    uint64 `json:"conversation_id"`
	ConversationToken string `json:"conversation_token"`
	MessageID         uint64 `json:"message_id"`
	SenderID          uint64 `json:"sender_id"`
	Preview           string `json:"preview"`
}

type NotificationSink interface {
	NotifyNewMessage(ctx context.Context, userID uint64, notice NewMessageNotice) error
}

// Clock abstracts time for services; tests swap in a fixed clock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
