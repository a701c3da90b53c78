package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goconverse/internal/logger"
)

const (
	// HeartbeatTTL is how long a heartbeat keeps a user "online".
	HeartbeatTTL = 90 * time.Second
	// TypingTTL is how long a typing indicator lives without renewal.
	TypingTTL = 12 * time.Second
)

// Entry is one user's ephemeral signal in a conversation.
type Entry struct {
	UserID    uint64    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Tracker keeps heartbeat and typing containers per conversation in a TTL
// cache. Containers are rewritten wholesale on every write; concurrent
// writers for different users can race on the container and the loser's
// copy wins until the next write. Accepted: entries are advisory and the
// TTLs are short, so the worst case is an entry expiring one heartbeat
// interval early.
type Tracker struct {
	cache Cache
	now   func() time.Time
}

func NewTracker(cache Cache) *Tracker {
	return &Tracker{cache: cache, now: time.Now}
}

// WithClock returns a tracker using the given time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	return &Tracker{cache: t.cache, now: now}
}

func heartbeatKey(conversationID uint64) string {
	return fmt.Sprintf("presence:conv:%d", conversationID)
}

func typingKey(conversationID uint64) string {
	return fmt.Sprintf("typing:conv:%d", conversationID)
}

// Heartbeat marks the user active in the conversation for HeartbeatTTL.
func (t *Tracker) Heartbeat(ctx context.Context, conversationID, userID uint64) {
	t.upsert(ctx, heartbeatKey(conversationID), userID, HeartbeatTTL)
}

// Online returns the users with a live heartbeat in the conversation.
func (t *Tracker) Online(ctx context.Context, conversationID uint64) []Entry {
	return t.read(ctx, heartbeatKey(conversationID))
}

// SetTyping sets or clears the user's typing indicator. Clearing removes
// the entry outright instead of leaving it to expire.
func (t *Tracker) SetTyping(ctx context.Context, conversationID, userID uint64, typing bool) {
	if typing {
		t.upsert(ctx, typingKey(conversationID), userID, TypingTTL)
		return
	}
	t.remove(ctx, typingKey(conversationID), userID, TypingTTL)
}

// Typing returns the users currently typing in the conversation.
func (t *Tracker) Typing(ctx context.Context, conversationID uint64) []Entry {
	return t.read(ctx, typingKey(conversationID))
}

func (t *Tracker) load(ctx context.Context, key string) []Entry {
	data, err := t.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("presence read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("presence container corrupt", zap.String("key", key), zap.Error(err))
		return nil
	}
	return entries
}

func (t *Tracker) prune(entries []Entry) []Entry {
	now := t.now()
	kept := entries[:0]
	for _, e := range entries {
		if e.ExpiresAt.After(now) {
			kept = append(kept, e)
		}
	}
	return kept
}

func (t *Tracker) store(ctx context.Context, key string, entries []Entry, ttl time.Duration) {
	if len(entries) == 0 {
		if err := t.cache.Delete(ctx, key); err != nil {
			logger.Warn("presence delete failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		logger.Warn("presence encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := t.cache.Put(ctx, key, data, ttl); err != nil {
		logger.Warn("presence write failed", zap.String("key", key), zap.Error(err))
	}
}

func (t *Tracker) read(ctx context.Context, key string) []Entry {
	return t.prune(t.load(ctx, key))
}

func (t *Tracker) upsert(ctx context.Context, key string, userID uint64, ttl time.Duration) {
	now := t.now()
	entries := t.prune(t.load(ctx, key))

	updated := false
	for i := range entries {
		if entries[i].UserID == userID {
			entries[i].Timestamp = now
			entries[i].ExpiresAt = now.Add(ttl)
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, Entry{
			UserID:    userID,
			Timestamp: now,
			ExpiresAt: now.Add(ttl),
		})
	}
	t.store(ctx, key, entries, ttl)
}

func (t *Tracker) remove(ctx context.Context, key string, userID uint64, ttl time.Duration) {
	entries := t.prune(t.load(ctx, key))
	kept := entries[:0]
	for _, e := range entries {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	t.store(ctx, key, kept, ttl)
}
