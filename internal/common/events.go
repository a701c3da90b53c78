package common

import (
	"time"

	"goconverse/internal/dbmysql"
)

type EventName string

const (
	EventMessageSent    EventName = "message.sent"
	EventMessageDeleted EventName = "message.deleted"
	EventMessageRead    EventName = "message.read"
)

// Event is the payload published on the in-process bus. Sent/Deleted carry
// the message aggregate; Read carries the cursor position only.
type Event struct {
	Name           EventName
	ConversationID uint64
	ActorID        uint64
	MessageID      uint64
	Message        *dbmysql.Message
	OccurredAt     time.Time
}

type EventBus interface {
	Publish(event Event)
}
