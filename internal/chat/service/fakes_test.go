package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"goconverse/internal/common"
	"goconverse/internal/dbmysql"
)

// memStore is a mutex-guarded in-memory stand-in for the MySQL schema. The
// fake repositories below share one store, and fakeTx serializes Transact
// bodies the way the conversation row lock serializes them in production.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID        uint64
	conversations map[uint64]dbmysql.Conversation
	participants  map[uint64]dbmysql.ConversationParticipant
	messages      map[uint64]dbmysql.Message
	attachments   map[uint64]dbmysql.MessageAttachment
	reactions     map[uint64]dbmysql.MessageReaction
	users         map[uint64]dbmysql.User
	blocks        [][2]uint64
	follows       [][2]uint64
	metrics       map[string]dbmysql.MessageMetric
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[uint64]dbmysql.Conversation),
		participants:  make(map[uint64]dbmysql.ConversationParticipant),
		messages:      make(map[uint64]dbmysql.Message),
		attachments:   make(map[uint64]dbmysql.MessageAttachment),
		reactions:     make(map[uint64]dbmysql.MessageReaction),
		users:         make(map[uint64]dbmysql.User),
		metrics:       make(map[string]dbmysql.MessageMetric),
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addUser(u dbmysql.User) dbmysql.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.UserID == 0 {
		u.UserID = s.id()
	}
	if u.MessagingPolicy == "" {
		u.MessagingPolicy = dbmysql.PolicyEveryone
	}
	s.users[u.UserID] = u
	return u
}

func (s *memStore) addBlock(a, b uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, [2]uint64{a, b})
}

func (s *memStore) addFollow(follower, followee uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows = append(s.follows, [2]uint64{follower, followee})
}

func (s *memStore) conversation(id uint64) dbmysql.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

func (s *memStore) message(id uint64) dbmysql.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memStore) participantRow(convID, userID uint64) *dbmysql.ConversationParticipant {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ConversationID == convID && p.UserID == userID {
			row := p
			return &row
		}
	}
	return nil
}

func (s *memStore) messageCountFor(convID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ConversationID == convID {
			n++
		}
	}
	return n
}

// fakeTx emulates the locked transaction: bodies run one at a time.
type fakeTx struct {
	store *memStore
}

func (t *fakeTx) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()
	return fn(ctx)
}

type fakeConvRepo struct {
	store *memStore
}

func (r *fakeConvRepo) Create(_ context.Context, conv *dbmysql.Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	conv.ID = r.store.id()
	r.store.conversations[conv.ID] = *conv
	return nil
}

func (r *fakeConvRepo) Save(_ context.Context, conv *dbmysql.Conversation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.conversations[conv.ID] = *conv
	return nil
}

func (r *fakeConvRepo) ByID(_ context.Context, id uint64) (*dbmysql.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	conv, ok := r.store.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &conv, nil
}

func (r *fakeConvRepo) ByToken(_ context.Context, token string) (*dbmysql.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, conv := range r.store.conversations {
		if conv.Token == token {
			c := conv
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConvRepo) LockByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error) {
	return r.ByID(ctx, id)
}

func (r *fakeConvRepo) FindDirectBetween(_ context.Context, userA, userB uint64) (*dbmysql.Conversation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, conv := range r.store.conversations {
		if conv.Type != dbmysql.ConversationTypeDirect {
			continue
		}
		foundA, foundB := false, false
		for _, p := range r.store.participants {
			if p.ConversationID != conv.ID || p.LeftAt != nil {
				continue
			}
			if p.UserID == userA {
				foundA = true
			}
			if p.UserID == userB {
				foundB = true
			}
		}
		if foundA && foundB {
			c := conv
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeConvRepo) Participants(_ context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error) {
	return r.participants(convID, false), nil
}

func (r *fakeConvRepo) ActiveParticipants(_ context.Context, convID uint64) ([]*dbmysql.ConversationParticipant, error) {
	return r.participants(convID, true), nil
}

func (r *fakeConvRepo) participants(convID uint64, activeOnly bool) []*dbmysql.ConversationParticipant {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var rows []*dbmysql.ConversationParticipant
	for _, p := range r.store.participants {
		if p.ConversationID != convID {
			continue
		}
		if activeOnly && p.LeftAt != nil {
			continue
		}
		row := p
		rows = append(rows, &row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (r *fakeConvRepo) ParticipantFor(_ context.Context, convID, userID uint64) (*dbmysql.ConversationParticipant, error) {
	return r.store.participantRow(convID, userID), nil
}

func (r *fakeConvRepo) CreateParticipant(_ context.Context, p *dbmysql.ConversationParticipant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p.ID = r.store.id()
	r.store.participants[p.ID] = *p
	return nil
}

func (r *fakeConvRepo) SaveParticipant(_ context.Context, p *dbmysql.ConversationParticipant) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.participants[p.ID] = *p
	return nil
}

func (r *fakeConvRepo) RefreshParticipantCount(_ context.Context, convID uint64) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	count := 0
	for _, p := range r.store.participants {
		if p.ConversationID == convID && p.LeftAt == nil {
			count++
		}
	}
	conv, ok := r.store.conversations[convID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	conv.ParticipantCount = count
	r.store.conversations[convID] = conv
	return count, nil
}

type fakeMessageRepo struct {
	store *memStore
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *dbmysql.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.messages {
		if existing.ConversationID == msg.ConversationID && existing.Sequence == msg.Sequence {
			return gorm.ErrDuplicatedKey
		}
	}
	msg.ID = r.store.id()
	r.store.messages[msg.ID] = *msg
	return nil
}

func (r *fakeMessageRepo) Save(_ context.Context, msg *dbmysql.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.messages[msg.ID] = *msg
	return nil
}

func (r *fakeMessageRepo) ByID(_ context.Context, id uint64) (*dbmysql.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	msg, ok := r.store.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &msg, nil
}

func (r *fakeMessageRepo) ByIDHydrated(ctx context.Context, id uint64) (*dbmysql.Message, error) {
	msg, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, att := range r.store.attachments {
		if att.MessageID == id {
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	sort.Slice(msg.Attachments, func(i, j int) bool { return msg.Attachments[i].Ordering < msg.Attachments[j].Ordering })
	for _, re := range r.store.reactions {
		if re.MessageID == id {
			msg.Reactions = append(msg.Reactions, re)
		}
	}
	if msg.SenderID != nil {
		if u, ok := r.store.users[*msg.SenderID]; ok {
			msg.Sender = &u
		}
	}
	return msg, nil
}

func (r *fakeMessageRepo) History(_ context.Context, convID uint64, limit int) ([]*dbmysql.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var rows []*dbmysql.Message
	for _, m := range r.store.messages {
		if m.ConversationID == convID {
			row := m
			rows = append(rows, &row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence > rows[j].Sequence })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeMessageRepo) CreateAttachment(_ context.Context, att *dbmysql.MessageAttachment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	att.ID = r.store.id()
	r.store.attachments[att.ID] = *att
	return nil
}

type fakeReactionRepo struct {
	store *memStore
}

func (r *fakeReactionRepo) FindForUpdate(_ context.Context, messageID, userID uint64, emoji, variant string) (*dbmysql.MessageReaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, re := range r.store.reactions {
		if re.MessageID == messageID && re.UserID == userID && re.Emoji == emoji && re.Variant == variant {
			row := re
			return &row, nil
		}
	}
	return nil, nil
}

func (r *fakeReactionRepo) Create(_ context.Context, reaction *dbmysql.MessageReaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reaction.ID = r.store.id()
	r.store.reactions[reaction.ID] = *reaction
	return nil
}

func (r *fakeReactionRepo) Delete(_ context.Context, id uint64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.reactions, id)
	return nil
}

func (r *fakeReactionRepo) ForMessage(_ context.Context, messageID uint64) ([]*dbmysql.MessageReaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var rows []*dbmysql.MessageReaction
	for _, re := range r.store.reactions {
		if re.MessageID == messageID {
			row := re
			rows = append(rows, &row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

type fakeMetricRepo struct {
	store *memStore
}

func metricKey(day time.Time, convID, userID uint64) string {
	return fmt.Sprintf("%s|%d|%d", day.Format("2006-01-02"), convID, userID)
}

func (r *fakeMetricRepo) Increment(_ context.Context, day time.Time, conversationID, userID uint64, deltas dbmysql.MetricDeltas) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := metricKey(day, conversationID, userID)
	row := r.store.metrics[key]
	row.Day = day
	row.ConversationID = conversationID
	row.UserID = userID
	row.MessagesSent += deltas.MessagesSent
	row.AttachmentsSent += deltas.AttachmentsSent
	row.ReactionsAdded += deltas.ReactionsAdded
	row.SystemMessages += deltas.SystemMessages
	r.store.metrics[key] = row
	return nil
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) ByID(_ context.Context, id uint64) (*dbmysql.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) ByIDs(_ context.Context, ids []uint64) ([]*dbmysql.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var users []*dbmysql.User
	for _, id := range ids {
		if u, ok := r.store.users[id]; ok {
			user := u
			users = append(users, &user)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) HasBlockRelationship(_ context.Context, userA, userB uint64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, pair := range r.store.blocks {
		if (pair[0] == userA && pair[1] == userB) || (pair[0] == userB && pair[1] == userA) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) IsFollowing(_ context.Context, followerID, followeeID uint64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, pair := range r.store.follows {
		if pair[0] == followerID && pair[1] == followeeID {
			return true, nil
		}
	}
	return false, nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBus records published events synchronously.
type fakeBus struct {
	mu     sync.Mutex
	events []common.Event
}

func (b *fakeBus) Publish(event common.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBus) published() []common.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]common.Event, len(b.events))
	copy(out, b.events)
	return out
}

// fakeSink records new-message notices.
type fakeSink struct {
	mu      sync.Mutex
	notices map[uint64][]common.NewMessageNotice
	err     error
}

func newFakeSink() *fakeSink {
	return &fakeSink{notices: make(map[uint64][]common.NewMessageNotice)}
}

func (s *fakeSink) NotifyNewMessage(_ context.Context, userID uint64, notice common.NewMessageNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.notices[userID] = append(s.notices[userID], notice)
	return nil
}

func (s *fakeSink) noticesFor(userID uint64) []common.NewMessageNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices[userID]
}

// fakeAttacher returns one attachment row per non-empty upload id.
type fakeAttacher struct {
	mu    sync.Mutex
	calls int
}

func (a *fakeAttacher) AttachFromTemporary(_ context.Context, msg *dbmysql.Message, _ *dbmysql.Conversation, uploaderID uint64, inputs []AttachmentInput) []*dbmysql.MessageAttachment {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	var out []*dbmysql.MessageAttachment
	for i, input := range inputs {
		if input.UploadID == "" {
			continue
		}
		out = append(out, &dbmysql.MessageAttachment{
			MessageID:  msg.ID,
			UploaderID: uploaderID,
			Kind:       dbmysql.MediaKindFile,
			Disk:       "media",
			Path:       "conversations/x/attachments/" + input.UploadID,
			Ordering:   i,
		})
	}
	return out
}

// fixture wires the services over one shared store.
type fixture struct {
	store     *memStore
	tx        *fakeTx
	convs     *fakeConvRepo
	messages  *fakeMessageRepo
	reactions *fakeReactionRepo
	metrics   *fakeMetricRepo
	users     *fakeUserRepo
	clock     *fakeClock
	bus       *fakeBus
	sink      *fakeSink
	attacher  *fakeAttacher
	auth      common.Authorizer
	analytics AnalyticsService

	conversations ConversationService
	messaging     MessageService
	reacting      ReactionService
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:     store,
		tx:        &fakeTx{store: store},
		convs:     &fakeConvRepo{store: store},
		messages:  &fakeMessageRepo{store: store},
		reactions: &fakeReactionRepo{store: store},
		metrics:   &fakeMetricRepo{store: store},
		users:     &fakeUserRepo{store: store},
		clock:     newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		bus:       &fakeBus{},
		sink:      newFakeSink(),
		attacher:  &fakeAttacher{},
	}
	f.auth = &PolicyAuthorizer{
		users:         f.users,
		conversations: f.convs,
		clock:         f.clock,
	}
	f.analytics = NewAnalyticsService(f.metrics, f.clock)
	f.conversations = NewConversationService(f.tx, f.convs, f.messages, f.users, f.auth, f.analytics, f.bus, f.clock)
	f.messaging = NewMessageService(f.tx, f.convs, f.messages, f.users, f.auth, f.attacher, f.analytics, f.bus, f.sink, f.clock)
	f.reacting = NewReactionService(f.tx, f.messages, f.reactions, f.auth, f.analytics)
	return f
}

func (f *fixture) seedUsers(n int) []dbmysql.User {
	users := make([]dbmysql.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, f.store.addUser(dbmysql.User{
			Handle: fmt.Sprintf("user%d", i+1),
		}))
	}
	return users
}

func (f *fixture) seedGroup(memberIDs ...uint64) *dbmysql.Conversation {
	conv := &dbmysql.Conversation{
		Token:     newConversationToken(),
		Type:      dbmysql.ConversationTypeGroup,
		CreatedBy: memberIDs[0],
	}
	ctx := context.Background()
	if err := f.convs.Create(ctx, conv); err != nil {
		panic(err)
	}
	for i, id := range memberIDs {
		role := dbmysql.RoleMember
		if i == 0 {
			role = dbmysql.RoleOwner
		}
		p := &dbmysql.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           role,
			JoinedAt:       f.clock.Now(),
		}
		if err := f.convs.CreateParticipant(ctx, p); err != nil {
			panic(err)
		}
	}
	count, err := f.convs.RefreshParticipantCount(ctx, conv.ID)
	if err != nil {
		panic(err)
	}
	conv.ParticipantCount = count
	return conv
}
