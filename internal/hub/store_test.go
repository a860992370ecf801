package hub

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory message store and user directory
type memStore struct {
	mu           sync.Mutex
	msgs         []model.Message
	users        map[string]*model.User
	beforeInsert func(*model.Message)
}

func newMemStore(users ...*model.User) *memStore {
	s := &memStore{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.ID.Hex()] = u
	}
	return s
}

func (s *memStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) setBeforeInsert(fn func(*model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeInsert = fn
}

func (s *memStore) Insert(_ context.Context, msg *model.Message) (*model.Message, error) {
	s.mu.Lock()
	hook := s.beforeInsert
	s.mu.Unlock()
	if hook != nil {
		hook(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	s.msgs = append(s.msgs, *msg)
	return msg, nil
}

func (s *memStore) FindByID(_ context.Context, id primitive.ObjectID) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			cp := s.msgs[i]
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) FindByClientTempID(_ context.Context, senderID, clientTempID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if clientTempID != "" && s.msgs[i].SenderID == senderID && s.msgs[i].ClientTempID == clientTempID {
			cp := s.msgs[i]
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error) {
	out := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if m, err := s.FindByID(ctx, id); err == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) FindConversationPage(_ context.Context, a, b string, page, size int64) (*db.Page[model.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.Message, 0)
	for _, m := range s.msgs {
		if m.Involves(a, b) {
			matched = append(matched, m)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	start := (page - 1) * size
	if start > int64(len(matched)) {
		start = int64(len(matched))
	}
	end := start + size
	if end > int64(len(matched)) {
		end = int64(len(matched))
	}
	data := append([]model.Message(nil), matched[start:end]...)
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
	return &db.Page[model.Message]{Data: data, Total: int64(len(matched)), Page: page, PageSize: size}, nil
}

func (s *memStore) MarkRead(_ context.Context, id primitive.ObjectID, at time.Time) (*model.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			changed := !s.msgs[i].IsRead
			if changed {
				s.msgs[i].IsRead = true
				s.msgs[i].ReadAt = &at
			}
			cp := s.msgs[i]
			return &cp, changed, nil
		}
	}
	return nil, false, repo.ErrNotFound
}

func (s *memStore) MarkConversationRead(_ context.Context, readerID, partnerID string, at time.Time) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]primitive.ObjectID, 0)
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.SenderID == partnerID && m.RecipientID == readerID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (s *memStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memStore) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.RecipientID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *memStore) EnsureIndexes(context.Context) error { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// recordingBroker captures publications and serves presence from a map
type recordingBroker struct {
	mu         sync.Mutex
	published  []Envelope
	online     map[string]bool
	closed     bool
	afterClose int
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{online: make(map[string]bool)}
}

func (b *recordingBroker) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.afterClose++
	}
	b.published = append(b.published, env)
	return nil
}

func (b *recordingBroker) Subscribe(ctx context.Context, _ func(Envelope)) error {
	<-ctx.Done()
	return nil
}

func (b *recordingBroker) SetPresence(_ context.Context, userID string, online bool, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.afterClose++
	}
	b.online[userID] = online
	return nil
}

func (b *recordingBroker) IsOnline(_ context.Context, userID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online[userID], nil
}

func (b *recordingBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// callsAfterClose counts publications and presence writes made on a closed broker
func (b *recordingBroker) callsAfterClose() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.afterClose
}

func (b *recordingBroker) envelopes() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Envelope(nil), b.published...)
}
