package handler

import (
	"context"
	"sync"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/service"

	"github.com/stretchr/testify/mock"
)

type mockMessageService struct {
	mock.Mock
}

func (m *mockMessageService) Send(ctx context.Context, in service.SendInput) (*model.Message, error) {
	args := m.Called(ctx, in)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessageService) ConversationPage(ctx context.Context, requesterID, partnerID string, page, limit int64) (*model.MessagePage, error) {
	args := m.Called(ctx, requesterID, partnerID, page, limit)
	p, _ := args.Get(0).(*model.MessagePage)
	return p, args.Error(1)
}

func (m *mockMessageService) MarkRead(ctx context.Context, requesterID, messageID string) (*model.Message, bool, error) {
	args := m.Called(ctx, requesterID, messageID)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Bool(1), args.Error(2)
}

func (m *mockMessageService) MarkConversationRead(ctx context.Context, readerID, partnerID string) ([]string, error) {
	args := m.Called(ctx, readerID, partnerID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockMessageService) Delete(ctx context.Context, requesterID, messageID string) (*model.Message, error) {
	args := m.Called(ctx, requesterID, messageID)
	msg, _ := args.Get(0).(*model.Message)
	return msg, args.Error(1)
}

func (m *mockMessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageService) User(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type mockConversationService struct {
	mock.Mock
}

func (m *mockConversationService) List(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	rows, _ := args.Get(0).([]model.ConversationSummary)
	return rows, args.Error(1)
}

// recordingNotifier captures the gateway fan-out triggered by REST calls
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	temp  string
}

func (n *recordingNotifier) record(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, name)
}

func (n *recordingNotifier) NotifyMessageSent(_ *model.Message, clientTempID string) {
	n.temp = clientTempID
	n.record("sent")
}
func (n *recordingNotifier) NotifyMessageRead(*model.Message) { n.record("read") }
func (n *recordingNotifier) NotifyConversationRead(string, string, []string) {
	n.record("conversation_read")
}
func (n *recordingNotifier) NotifyMessageDeleted(*model.Message) { n.record("deleted") }

type staticPresence map[string]bool

func (p staticPresence) IsOnline(_ context.Context, userID string) bool { return p[userID] }

type staticStats model.MonitorResponse

func (s staticStats) GetStats() model.MonitorResponse { return model.MonitorResponse(s) }
