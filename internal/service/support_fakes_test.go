package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"Helpdesk/internal/api/config"
	"Helpdesk/internal/model"
	"Helpdesk/internal/pkg/consts"
	"Helpdesk/internal/pkg/push"
	"Helpdesk/internal/pkg/signal"

	"gorm.io/gorm"
)

// fakeStore 进程内的存储替身，同时实现全部仓储接口。
// 语义对齐真实实现：找不到返回 gorm.ErrRecordNotFound，返回值均为副本
type fakeStore struct {
	mu sync.Mutex

	nextConvID    uint64
	nextMsgID     uint64
	nextContactID uint64
	nextSubID     uint64

	contacts  map[uint64]*model.SupportContact
	convs     map[uint64]*model.Conversation
	msgs      []*model.Message
	presences map[uint64]*model.OperatorPresence
	subs      map[uint64]*model.PushSubscription
	ratings   map[uint64]*model.Rating
	audits    []*model.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		contacts:  make(map[uint64]*model.SupportContact),
		convs:     make(map[uint64]*model.Conversation),
		presences: make(map[uint64]*model.OperatorPresence),
		subs:      make(map[uint64]*model.PushSubscription),
		ratings:   make(map[uint64]*model.Rating),
	}
}

func (s *fakeStore) cloneConv(conv *model.Conversation) *model.Conversation {
	c := *conv
	if contact, ok := s.contacts[conv.ContactID]; ok {
		c.Contact = *contact
	}
	return &c
}

// --- ConversationRepo ---

func (s *fakeStore) Create(_ context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	conv.ID = s.nextConvID
	conv.CreatedAt = time.Now()
	clone := *conv
	s.convs[conv.ID] = &clone
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, convID uint64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cloneConv(conv), nil
}

func (s *fakeStore) GetByToken(_ context.Context, token string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.Token == token {
			return s.cloneConv(conv), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) GetOpenByContact(_ context.Context, contactID uint64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *model.Conversation
	for _, conv := range s.convs {
		if conv.ContactID == contactID && conv.IsOpen {
			if found == nil || conv.CreatedAt.After(found.CreatedAt) {
				found = conv
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cloneConv(found), nil
}

func (s *fakeStore) IsOpen(_ context.Context, convID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[convID]
	return ok && conv.IsOpen, nil
}

func (s *fakeStore) AssignIfUnassigned(_ context.Context, convID, operatorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[convID]; ok {
		if conv.AssignedToID == 0 {
			conv.AssignedToID = operatorID
		}
		if conv.OperatorID == 0 {
			conv.OperatorID = operatorID
		}
	}
	return nil
}

func (s *fakeStore) Claim(_ context.Context, convID, operatorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[convID]; ok {
		conv.AssignedToID = operatorID
		if conv.OperatorID == 0 {
			conv.OperatorID = operatorID
		}
	}
	return nil
}

func (s *fakeStore) Close(_ context.Context, convID, operatorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[convID]; ok {
		now := time.Now()
		conv.IsOpen = false
		conv.ClosedAt = &now
		conv.ClosedByID = operatorID
	}
	return nil
}

func (s *fakeStore) Reopen(_ context.Context, convID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[convID]; ok {
		conv.IsOpen = true
		conv.ClosedAt = nil
	}
	return nil
}

func (s *fakeStore) ListOpenAnnotated(_ context.Context, _ string) ([]*model.ConversationQueueRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*model.ConversationQueueRow
	for _, conv := range s.convs {
		if !conv.IsOpen {
			continue
		}
		row := &model.ConversationQueueRow{Conversation: *s.cloneConv(conv)}
		if contact, ok := s.contacts[conv.ContactID]; ok {
			row.ContactName = contact.Name
		}
		for _, m := range s.msgs {
			if m.ConversationID != conv.ID {
				continue
			}
			if m.Direction == consts.DirectionCustomer && !m.Read {
				row.UnreadCount++
				if row.OldestUnreadAt == nil || m.CreatedAt.Before(*row.OldestUnreadAt) {
					t := m.CreatedAt
					row.OldestUnreadAt = &t
				}
			}
			if row.LastMessageAt == nil || m.CreatedAt.After(*row.LastMessageAt) {
				t := m.CreatedAt
				row.LastMessageAt = &t
			}
			if m.ID > row.LastMessageID {
				row.LastMessageID = m.ID
				row.LastDirection = m.Direction
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s *fakeStore) ListIdleOpen(_ context.Context, idleBefore time.Time) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Conversation
	for _, conv := range s.convs {
		if !conv.IsOpen {
			continue
		}
		last := conv.CreatedAt
		for _, m := range s.msgs {
			if m.ConversationID == conv.ID && m.CreatedAt.After(last) {
				last = m.CreatedAt
			}
		}
		if last.Before(idleBefore) {
			out = append(out, s.cloneConv(conv))
		}
	}
	return out, nil
}

// --- MessageRepo ---

func (s *fakeStore) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMsgID++
	msg.ID = s.nextMsgID
	msg.CreatedAt = time.Now()
	clone := *msg
	s.msgs = append(s.msgs, &clone)
	return nil
}

func (s *fakeStore) ListAfter(_ context.Context, convID, afterID uint64, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.msgs {
		if m.ConversationID == convID && m.ID > afterID {
			clone := *m
			out = append(out, &clone)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) Recent(_ context.Context, convID uint64, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.msgs {
		if m.ConversationID == convID {
			clone := *m
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) MaxID(_ context.Context, convID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID uint64
	for _, m := range s.msgs {
		if m.ConversationID == convID && m.ID > maxID {
			maxID = m.ID
		}
	}
	return maxID, nil
}

func (s *fakeStore) MarkRead(_ context.Context, convID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == convID && m.Direction == consts.DirectionCustomer && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UnreadTotal(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		conv, ok := s.convs[m.ConversationID]
		if ok && conv.IsOpen && m.Direction == consts.DirectionCustomer && !m.Read {
			n++
		}
	}
	return n, nil
}

// --- ContactRepo ---

func (s *fakeStore) GetByPhone(_ context.Context, phone string) (*model.SupportContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.Phone == phone {
			clone := *contact
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) CreateContact(_ context.Context, contact *model.SupportContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextContactID++
	contact.ID = s.nextContactID
	clone := *contact
	s.contacts[contact.ID] = &clone
	return nil
}

func (s *fakeStore) Touch(_ context.Context, contactID uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contact, ok := s.contacts[contactID]; ok {
		contact.LastSeenAt = time.Now()
		if name != "" {
			contact.Name = name
		}
	}
	return nil
}

// --- RatingRepo ---

func (s *fakeStore) CreateRating(_ context.Context, rating *model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rating.CreatedAt = time.Now()
	clone := *rating
	s.ratings[rating.ConversationID] = &clone
	return nil
}

func (s *fakeStore) GetByConversation(_ context.Context, convID uint64) (*model.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rating, ok := s.ratings[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rating
	return &clone, nil
}

// --- PresenceRepo ---

func (s *fakeStore) Upsert(_ context.Context, operatorID, activeSessionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presences[operatorID] = &model.OperatorPresence{
		OperatorID:      operatorID,
		LastSeenAt:      time.Now(),
		ActiveSessionID: activeSessionID,
	}
	return nil
}

func (s *fakeStore) TouchSeen(_ context.Context, operatorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.presences[operatorID]; ok {
		p.LastSeenAt = time.Now()
		return nil
	}
	s.presences[operatorID] = &model.OperatorPresence{
		OperatorID: operatorID,
		LastSeenAt: time.Now(),
	}
	return nil
}

func (s *fakeStore) Get(_ context.Context, operatorID uint64) (*model.OperatorPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presences[operatorID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *fakeStore) OnlineSince(_ context.Context, cutoff time.Time) ([]*model.OperatorPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.OperatorPresence
	for _, p := range s.presences {
		if !p.LastSeenAt.Before(cutoff) {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

// --- PushSubscriptionRepo ---

func (s *fakeStore) UpsertSubscription(_ context.Context, sub *model.PushSubscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.OperatorID == sub.OperatorID && existing.Endpoint == sub.Endpoint {
			existing.P256dh = sub.P256dh
			existing.Auth = sub.Auth
			existing.IsActive = true
			sub.ID = existing.ID
			return false, nil
		}
	}
	s.nextSubID++
	sub.ID = s.nextSubID
	sub.IsActive = true
	clone := *sub
	s.subs[sub.ID] = &clone
	return true, nil
}

func (s *fakeStore) Deactivate(_ context.Context, operatorID uint64, endpoint string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sub := range s.subs {
		if sub.OperatorID == operatorID && sub.IsActive && (endpoint == "" || sub.Endpoint == endpoint) {
			sub.IsActive = false
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeactivateByID(_ context.Context, subID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[subID]; ok {
		sub.IsActive = false
	}
	return nil
}

func (s *fakeStore) ActiveForOperators(_ context.Context, operatorIDs []uint64) ([]*model.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uint64]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		wanted[id] = true
	}
	var out []*model.PushSubscription
	for _, sub := range s.subs {
		if sub.IsActive && wanted[sub.OperatorID] {
			clone := *sub
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CountActive(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sub := range s.subs {
		if sub.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountActiveByOperator(_ context.Context, operatorID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sub := range s.subs {
		if sub.IsActive && sub.OperatorID == operatorID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.subs)), nil
}

// --- AuditRepo ---

func (s *fakeStore) Append(_ context.Context, entry *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint64(len(s.audits) + 1)
	entry.CreatedAt = time.Now()
	clone := *entry
	s.audits = append(s.audits, &clone)
	return nil
}

func (s *fakeStore) ListByConversation(_ context.Context, convID uint64, limit int) ([]*model.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AuditLog
	for i := len(s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if s.audits[i].ConversationID == convID {
			clone := *s.audits[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

// repoAdapter 把同名方法岔开的几个接口粘回 fakeStore
type msgRepoAdapter struct{ *fakeStore }

func (a msgRepoAdapter) Create(ctx context.Context, msg *model.Message) error {
	return a.CreateMessage(ctx, msg)
}

type contactRepoAdapter struct{ *fakeStore }

func (a contactRepoAdapter) Create(ctx context.Context, contact *model.SupportContact) error {
	return a.CreateContact(ctx, contact)
}

type ratingRepoAdapter struct{ *fakeStore }

func (a ratingRepoAdapter) Create(ctx context.Context, rating *model.Rating) error {
	return a.CreateRating(ctx, rating)
}

type subRepoAdapter struct{ *fakeStore }

func (a subRepoAdapter) Upsert(ctx context.Context, sub *model.PushSubscription) (bool, error) {
	return a.UpsertSubscription(ctx, sub)
}

// fakeSender 可编程的推送传输替身
type fakeSender struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	sent     []push.Subscription
	payloads [][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		statuses: make(map[string]int),
		errs:     make(map[string]error),
	}
}

func (s *fakeSender) Send(_ context.Context, sub push.Subscription, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sub)
	s.payloads = append(s.payloads, payload)
	if err, ok := s.errs[sub.Endpoint]; ok {
		return 0, err
	}
	if status, ok := s.statuses[sub.Endpoint]; ok {
		return status, nil
	}
	return 201, nil
}

func (s *fakeSender) sentEndpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, sub := range s.sent {
		out = append(out, sub.Endpoint)
	}
	return out
}

// fixture 一套接好线的服务栈，跑在内存缓存与存储替身上
type fixture struct {
	store    *fakeStore
	cache    *signal.MemoryCache
	tracker  *signal.Tracker
	typing   *signal.Typing
	governor *signal.Governor
	sender   *fakeSender
	cfg      *config.SupportConfig

	chat     ChatService
	poll     PollService
	queue    QueueService
	operator OperatorService
	pusher   PushService
}

func newFixture() *fixture {
	store := newFakeStore()
	cache := signal.NewMemoryCache()
	msgRepo := msgRepoAdapter{store}
	tracker := signal.NewTracker(cache, msgRepo.MaxID)
	typing := signal.NewTyping(cache)
	governor := signal.NewGovernor(cache, time.Second)
	sender := newFakeSender()

	cfg := &config.Config{}
	cfg.Support.Poll.MaxTimeoutSeconds = 1
	cfg.Support.Poll.IntervalMs = 5
	cfg.Support.Poll.LockGraceSeconds = 1
	cfg.Support.SLA.WarnSeconds = 120
	cfg.Support.SLA.BreachSeconds = 600
	cfg.Support.Presence.OnlineWindowMinutes = 5
	cfg.Support.Push.Enabled = true
	cfg.Support.Push.VAPIDPublicKey = "test-public"
	cfg.Support.Push.VAPIDPrivateKey = "test-private"
	cfg.Support.Push.Subject = "mailto:ops@example.com"
	cfg.Support.Push.ClickURLBase = "https://example.com/operator/conversations"
	cfg.Support.Janitor.IdleCloseHours = 72
	supportCfg := &cfg.Support

	pusher := NewPushService(subRepoAdapter{store}, store, store, sender, cache, governor, supportCfg)
	chat := NewChatService(store, contactRepoAdapter{store}, msgRepo, ratingRepoAdapter{store}, tracker, typing, pusher)
	queue := NewQueueService(store, store, supportCfg)
	poll := NewPollService(store, msgRepo, store, queue, tracker, typing, governor, supportCfg)
	operator := NewOperatorService(store, msgRepo, ratingRepoAdapter{store}, store, store, tracker, typing, supportCfg)

	return &fixture{
		store:    store,
		cache:    cache,
		tracker:  tracker,
		typing:   typing,
		governor: governor,
		sender:   sender,
		cfg:      supportCfg,
		chat:     chat,
		poll:     poll,
		queue:    queue,
		operator: operator,
		pusher:   pusher,
	}
}

// seedConversation 建一个联系人加一条开启中会话
func (f *fixture) seedConversation(name, phone string) *model.Conversation {
	ctx := context.Background()
	contact := &model.SupportContact{Name: name, Phone: phone}
	_ = f.store.CreateContact(ctx, contact)
	conv := &model.Conversation{
		Token:     "tok-" + phone,
		ContactID: contact.ID,
		Subject:   "Support Request",
		IsOpen:    true,
	}
	_ = f.store.Create(ctx, conv)
	return conv
}

// seedCustomerMessage 直接落一条客户消息，不触发信号与推送
func (f *fixture) seedCustomerMessage(convID uint64, body string) *model.Message {
	msg := &model.Message{
		ConversationID: convID,
		Direction:      consts.DirectionCustomer,
		Body:           body,
	}
	_ = f.store.CreateMessage(context.Background(), msg)
	return msg
}
