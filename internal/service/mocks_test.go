package service

import (
	"context"
	"sync"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/db"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/stream"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if fn, ok := args.Get(0).(func(*model.Message) *model.Message); ok {
		return fn(msg), args.Error(1)
	}
	saved, _ := args.Get(0).(*model.Message)
	return saved, args.Error(1)
}

func (m *mockMessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessageRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Message, error) {
	args := m.Called(ctx, ids)
	msgs, _ := args.Get(0).([]model.Message)
	return msgs, args.Error(1)
}

func (m *mockMessageRepo) FindByClientTempID(ctx context.Context, senderID, clientTempID string) (*model.Message, error) {
	args := m.Called(ctx, senderID, clientTempID)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessageRepo) FindConversationPage(ctx context.Context, a, b string, page, size int64) (*db.Page[model.Message], error) {
	args := m.Called(ctx, a, b, page, size)
	p, _ := args.Get(0).(*db.Page[model.Message])
	return p, args.Error(1)
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*model.Message, bool, error) {
	args := m.Called(ctx, id, at)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Bool(1), args.Error(2)
}

func (m *mockMessageRepo) MarkConversationRead(ctx context.Context, readerID, partnerID string, at time.Time) ([]primitive.ObjectID, error) {
	args := m.Called(ctx, readerID, partnerID, at)
	ids, _ := args.Get(0).([]primitive.ObjectID)
	return ids, args.Error(1)
}

func (m *mockMessageRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockMessageRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepo) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) ListConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	rows, _ := args.Get(0).([]model.ConversationSummary)
	return rows, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []stream.DomainEvent
}

func (r *recordingPublisher) Publish(_ context.Context, evt stream.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
