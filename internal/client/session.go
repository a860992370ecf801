package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultComposeIdle is how long the user may stop typing before stop_typing
// is sent
const DefaultComposeIdle = 2 * time.Second

// reasonConnectionLost marks sends whose gateway dropped before the ack
const reasonConnectionLost = "connection lost"

var ErrNotRetryable = errors.New("message is not a failed send")

// EventStream is the gateway connection as a Session sees it
type EventStream interface {
	Emit(name string, payload any) error
	Events() <-chan event.WsEvent
	Done() <-chan struct{}
}

// API is the part of the REST facade a Session uses
type API interface {
	SendMessage(ctx context.Context, req SendRequest) (*model.Message, error)
	Conversations(ctx context.Context) ([]model.ConversationSummary, error)
	Messages(ctx context.Context, partnerID string, page, limit int64) (*model.MessagePage, error)
	MarkConversationRead(ctx context.Context, partnerID string) ([]string, error)
}

// Draft is a message the user is about to send
type Draft struct {
	RecipientID     string
	Content         string
	Image           *string
	ParentMessageID string
}

// Session is one signed-in user's view of their direct messages. It applies
// gateway events to the open threads and the inbox, and falls back to REST
// when the gateway is unavailable.
type Session struct {
	self   string
	api    API
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	gateway EventStream
	gwGen   uint64
	threads map[string]*reconcile.Thread
	inbox   *reconcile.Inbox
	typing  *reconcile.TypingTracker
	online  map[string]bool
	open    string

	// sends not yet acknowledged, by temp id
	sends map[string]pendingSend

	// read receipts for messages no thread holds yet, by server id
	strayReads map[string]struct{}

	composer *composer
	observer func(event.WsEvent)
}

func NewSession(self string, gateway EventStream, api API, logger *zap.Logger) *Session {
	s := &Session{
		self:    self,
		api:     api,
		logger:  logger.With(zap.String("user_id", self)),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		gateway: gateway,
		threads: make(map[string]*reconcile.Thread),
		inbox:   reconcile.NewInbox(self),
		typing:  reconcile.NewTypingTracker(reconcile.DefaultTypingWindow),
		online:  make(map[string]bool),
		sends:   make(map[string]pendingSend),

		strayReads: make(map[string]struct{}),
	}
	s.composer = newComposer(DefaultComposeIdle, s.emitTyping)
	return s
}

type pendingSend struct {
	partner string
	gateway bool
	gen     uint64 // gateway generation the frame went out on
}

// SetGateway swaps in a new gateway connection after a reconnect
func (s *Session) SetGateway(gw EventStream) {
	s.mu.Lock()
	s.gateway = gw
	s.gwGen++
	s.mu.Unlock()
}

// OnEvent registers fn to be called after each server event is applied
func (s *Session) OnEvent(fn func(event.WsEvent)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Run applies gateway events until ctx ends or the connection drops. Sends
// that went out on this connection and were never acknowledged are marked
// failed on the way out.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	gw, gen := s.gateway, s.gwGen
	s.mu.Unlock()
	if gw == nil {
		return ErrGatewayClosed
	}

	defer s.failPending(gen, reasonConnectionLost)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gw.Done():
			s.drain(ctx, gw)
			return ErrGatewayClosed
		case ev, ok := <-gw.Events():
			if !ok {
				return ErrGatewayClosed
			}
			s.Handle(ctx, ev)
		}
	}
}

// drain applies events already buffered when the connection went away
func (s *Session) drain(ctx context.Context, gw EventStream) {
	for {
		select {
		case ev, ok := <-gw.Events():
			if !ok {
				return
			}
			s.Handle(ctx, ev)
		default:
			return
		}
	}
}

// Send inserts the message optimistically, then delivers it over the
// gateway, or over REST when the gateway is down. A REST failure marks the
// local copy failed and is returned.
func (s *Session) Send(ctx context.Context, d Draft) (reconcile.Message, error) {
	tempID := s.newID()
	now := s.now().UTC()

	s.mu.Lock()
	th := s.thread(d.RecipientID)
	local := th.InsertOptimistic(tempID, d.Content, d.Image, d.ParentMessageID, now)
	s.inbox.ApplySent(d.RecipientID, d.Content, now)
	s.mu.Unlock()

	s.composer.stop()

	return s.deliver(ctx, th, local)
}

// Retry resends a failed message in place: the entry goes back to sending
// under its original temp id. The server resolves a temp id it already
// stored to that message, so a send that did land is not duplicated.
func (s *Session) Retry(ctx context.Context, partnerID, tempID string) (reconcile.Message, error) {
	s.mu.Lock()
	th := s.threads[partnerID]
	if th == nil {
		s.mu.Unlock()
		return reconcile.Message{}, ErrNotRetryable
	}
	local, ok := th.Retry(tempID)
	s.mu.Unlock()
	if !ok {
		return reconcile.Message{}, ErrNotRetryable
	}

	return s.deliver(ctx, th, local)
}

// deliver sends local over the gateway, or over REST when the gateway is
// down or refuses the frame
func (s *Session) deliver(ctx context.Context, th *reconcile.Thread, local reconcile.Message) (reconcile.Message, error) {
	tempID := local.TempID

	s.mu.Lock()
	gw, gen := s.gateway, s.gwGen
	s.sends[tempID] = pendingSend{partner: th.Partner(), gateway: true, gen: gen}
	s.mu.Unlock()

	if gatewayUp(gw) {
		err := gw.Emit(event.EventSendMessage, model.SendMessagePayload{
			RecipientID:     local.RecipientID,
			Content:         local.Content,
			Image:           local.Image,
			ParentMessageID: local.ParentMessageID,
			ClientTempID:    tempID,
		})
		if err == nil {
			return local, nil
		}
		s.logger.Debug("gateway send failed, using REST", zap.Error(err))
	}

	s.mu.Lock()
	s.sends[tempID] = pendingSend{partner: th.Partner()}
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, SendRequest{
		RecipientID:     local.RecipientID,
		Content:         local.Content,
		Image:           local.Image,
		ParentMessageID: local.ParentMessageID,
		ClientTempID:    tempID,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sends, tempID)

	if err != nil {
		th.MarkFailed(tempID, failureReason(err))
		failed, _ := th.Lookup(reconcile.Temporary(tempID))
		return failed, err
	}

	th.ApplyAck(model.MessageSent{
		MessageID:    msg.ID.Hex(),
		CreatedAt:    msg.CreatedAt,
		ClientTempID: tempID,
		Message:      msg,
	})
	s.settleReads(th)
	sent, _ := th.Lookup(reconcile.Temporary(tempID))
	return sent, nil
}

// failPending marks failed every send that went out on gateway generation
// gen and was not acknowledged
func (s *Session) failPending(gen uint64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tempID, p := range s.sends {
		if !p.gateway || p.gen != gen {
			continue
		}
		delete(s.sends, tempID)
		if th := s.threads[p.partner]; th != nil {
			th.MarkFailed(tempID, reason)
		}
	}
}

// Open makes partnerID the open conversation: it fetches the first page,
// zeroes the unread counter and tells the server the conversation was read.
func (s *Session) Open(ctx context.Context, partnerID string) error {
	s.mu.Lock()
	s.open = partnerID
	th := s.thread(partnerID)
	s.inbox.Open(partnerID)
	s.mu.Unlock()

	page, err := s.api.Messages(ctx, partnerID, 1, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	th.ApplyPage(page.Messages)
	s.settleReads(th)
	th.MarkIncomingRead()
	s.mu.Unlock()

	s.markConversationRead(ctx, partnerID)
	return nil
}

// LoadPage merges an older page of the conversation with partnerID
func (s *Session) LoadPage(ctx context.Context, partnerID string, page int64) error {
	result, err := s.api.Messages(ctx, partnerID, page, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	th := s.thread(partnerID)
	th.ApplyPage(result.Messages)
	s.settleReads(th)
	s.mu.Unlock()
	return nil
}

// CloseConversation leaves the open conversation. Its thread is kept.
func (s *Session) CloseConversation() {
	s.mu.Lock()
	s.open = ""
	s.mu.Unlock()
	s.composer.stop()
}

// RefreshInbox replaces the inbox with the server's view
func (s *Session) RefreshInbox(ctx context.Context) error {
	rows, err := s.api.Conversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.inbox.Replace(rows)
	if s.open != "" {
		s.inbox.Open(s.open)
	}
	s.mu.Unlock()
	return nil
}

// Composing records a keystroke in the conversation with partnerID
func (s *Session) Composing(partnerID string) {
	s.composer.touch(partnerID)
}

// StopComposing sends stop_typing right away if a typing streak is active
func (s *Session) StopComposing() {
	s.composer.stop()
}

// Handle applies one server event
func (s *Session) Handle(ctx context.Context, ev event.WsEvent) {
	var err error
	switch ev.Event {
	case event.EventReceiveMessage:
		err = s.onReceive(ctx, ev)
	case event.EventMessageSent:
		err = s.onAck(ev)
	case event.EventMessageDelivered:
		err = s.onDelivered(ev)
	case event.EventMessageError:
		err = s.onError(ev)
	case event.EventMessageRead:
		err = s.onRead(ev)
	case event.EventMessagesRead:
		err = s.onBulkRead(ev)
	case event.EventMessageDeleted:
		err = s.onDeleted(ev)
	case event.EventUserTyping:
		err = s.onTyping(ev)
	case event.EventUserStoppedTyping:
		err = s.onStoppedTyping(ev)
	case event.EventUserOnline:
		err = s.onPresence(ev, true)
	case event.EventUserOffline:
		err = s.onPresence(ev, false)
	case event.EventConversationUpdated:
		err = s.onConversationUpdated(ev)
	default:
		s.logger.Debug("ignoring unknown event", zap.String("event", ev.Event))
	}

	if err != nil {
		s.logger.Warn("failed to apply event", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(ev)
	}
}

func (s *Session) onReceive(ctx context.Context, ev event.WsEvent) error {
	var msg model.Message
	if err := ev.Decode(&msg); err != nil {
		return err
	}
	partner := msg.PartnerOf(s.self)

	s.mu.Lock()
	th := s.threads[partner]
	if th != nil {
		th.ApplyIncoming(msg)
		s.settleReads(th)
	}
	s.typing.Stop(msg.SenderID)
	s.inbox.ApplyIncoming(msg, s.open)

	autoRead := partner == s.open && msg.SenderID == partner && !msg.IsRead
	if autoRead && th != nil {
		th.MarkIncomingRead()
	}
	s.mu.Unlock()

	if autoRead {
		s.markConversationRead(ctx, partner)
	}
	return nil
}

func (s *Session) onAck(ev event.WsEvent) error {
	var ack model.MessageSent
	if err := ev.Decode(&ack); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.sends[ack.ClientTempID]
	partner := pending.partner
	if !ok && ack.Message != nil {
		partner = ack.Message.PartnerOf(s.self)
	}
	delete(s.sends, ack.ClientTempID)

	if th := s.threads[partner]; th != nil {
		th.ApplyAck(ack)
		s.settleReads(th)
	}
	return nil
}

func (s *Session) onDelivered(ev event.WsEvent) error {
	var d model.MessageDelivered
	if err := ev.Decode(&d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	th := s.holding(reconcile.Confirmed(d.MessageID), reconcile.Temporary(d.ClientTempID))
	if th == nil {
		th = s.threads[s.sends[d.ClientTempID].partner]
	}
	if th != nil {
		th.ApplyDelivered(d)
	}
	return nil
}

func (s *Session) onError(ev event.WsEvent) error {
	var e model.MessageError
	if err := ev.Decode(&e); err != nil {
		return err
	}
	s.logger.Info("server rejected operation",
		zap.String("kind", e.Error),
		zap.String("message", e.Message),
		zap.String("client_temp_id", e.ClientTempID),
	)
	if e.ClientTempID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	partner := s.sends[e.ClientTempID].partner
	delete(s.sends, e.ClientTempID)
	if th := s.threads[partner]; th != nil {
		th.MarkFailed(e.ClientTempID, e.Message)
	}
	return nil
}

func (s *Session) onRead(ev event.WsEvent) error {
	var r model.MessageRead
	if err := ev.Decode(&r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !r.IsRead || r.MessageID == "" {
		return nil
	}
	if th := s.holding(reconcile.Confirmed(r.MessageID)); th != nil {
		th.ApplyRead(r)
		return nil
	}
	// held until the message turns up in whichever thread it belongs to
	s.strayReads[r.MessageID] = struct{}{}
	return nil
}

func (s *Session) onBulkRead(ev event.WsEvent) error {
	var r model.MessagesRead
	if err := ev.Decode(&r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if th := s.threads[r.ReaderID]; th != nil {
		th.ApplyBulkRead(r.MessageIDs)
	}
	return nil
}

func (s *Session) onDeleted(ev event.WsEvent) error {
	var d model.MessageDeleted
	if err := ev.Decode(&d); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if th := s.threads[d.SenderID]; th != nil {
		th.Remove(reconcile.Confirmed(d.MessageID))
	}
	return nil
}

func (s *Session) onTyping(ev event.WsEvent) error {
	var t model.UserTyping
	if err := ev.Decode(&t); err != nil {
		return err
	}
	s.mu.Lock()
	s.typing.Start(t.UserID, t.Username, s.now())
	s.mu.Unlock()
	return nil
}

func (s *Session) onStoppedTyping(ev event.WsEvent) error {
	var t model.UserStoppedTyping
	if err := ev.Decode(&t); err != nil {
		return err
	}
	s.mu.Lock()
	s.typing.Stop(t.UserID)
	s.mu.Unlock()
	return nil
}

func (s *Session) onPresence(ev event.WsEvent, online bool) error {
	var p model.UserOffline
	if err := ev.Decode(&p); err != nil {
		return err
	}
	s.mu.Lock()
	if online {
		s.online[p.UserID] = true
	} else {
		delete(s.online, p.UserID)
		s.typing.Stop(p.UserID)
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) onConversationUpdated(ev event.WsEvent) error {
	var u model.ConversationUpdated
	if err := ev.Decode(&u); err != nil {
		return err
	}
	s.mu.Lock()
	s.inbox.ApplyConversationUpdated(u)
	s.mu.Unlock()
	return nil
}

// -----------------------------------------------------------------------------
// read side
// -----------------------------------------------------------------------------

// Messages returns the thread with partnerID, oldest first
func (s *Session) Messages(partnerID string) []reconcile.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if th := s.threads[partnerID]; th != nil {
		return th.Messages()
	}
	return nil
}

// Conversations returns the inbox, most recent first
func (s *Session) Conversations() []model.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox.Rows()
}

func (s *Session) TotalUnread() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox.TotalUnread()
}

func (s *Session) OpenPartner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *Session) IsTyping(partnerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing.IsTyping(partnerID, s.now())
}

// Typing lists partners currently typing
func (s *Session) Typing() []reconcile.TypingIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing.Active(s.now())
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

// thread returns the thread with partnerID, creating it. Callers hold mu.
func (s *Session) thread(partnerID string) *reconcile.Thread {
	th, ok := s.threads[partnerID]
	if !ok {
		th = reconcile.NewThread(s.self, partnerID)
		s.threads[partnerID] = th
	}
	return th
}

// holding finds the thread containing any of keys. Callers hold mu.
func (s *Session) holding(keys ...reconcile.Key) *reconcile.Thread {
	for _, th := range s.threads {
		for _, k := range keys {
			if _, ok := th.Lookup(k); ok {
				return th
			}
		}
	}
	return nil
}

// settleReads applies held read receipts whose message th now holds.
// Callers hold mu.
func (s *Session) settleReads(th *reconcile.Thread) {
	for id := range s.strayReads {
		if _, ok := th.Lookup(reconcile.Confirmed(id)); ok {
			th.ApplyRead(model.MessageRead{MessageID: id, IsRead: true})
			delete(s.strayReads, id)
		}
	}
}

func (s *Session) currentGateway() EventStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway
}

func (s *Session) markConversationRead(ctx context.Context, partnerID string) {
	if gw := s.currentGateway(); gatewayUp(gw) {
		err := gw.Emit(event.EventMarkConversationRead, model.MarkConversationReadPayload{PartnerID: partnerID})
		if err == nil {
			return
		}
		s.logger.Debug("gateway mark read failed, using REST", zap.Error(err))
	}

	if _, err := s.api.MarkConversationRead(ctx, partnerID); err != nil {
		s.logger.Warn("failed to mark conversation read",
			zap.String("partner_id", partnerID),
			zap.Error(err),
		)
	}
}

// emitTyping is best effort: there is no REST route for typing
func (s *Session) emitTyping(name, partnerID string) {
	gw := s.currentGateway()
	if !gatewayUp(gw) {
		return
	}
	if err := gw.Emit(name, model.TypingPayload{RecipientID: partnerID}); err != nil {
		s.logger.Debug("typing emit failed", zap.String("event", name), zap.Error(err))
	}
}

func gatewayUp(gw EventStream) bool {
	if gw == nil {
		return false
	}
	select {
	case <-gw.Done():
		return false
	default:
		return true
	}
}

func failureReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// composer emits typing on the first keystroke of a streak and stop_typing
// once the user has been idle for the configured duration
type composer struct {
	mu      sync.Mutex
	idle    time.Duration
	emit    func(name, partnerID string)
	partner string
	timer   *time.Timer
	gen     uint64
}

func newComposer(idle time.Duration, emit func(name, partnerID string)) *composer {
	return &composer{idle: idle, emit: emit}
}

func (c *composer) touch(partnerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.partner != partnerID {
		if c.partner != "" {
			c.stopLocked()
		}
		c.partner = partnerID
		c.emit(event.EventTyping, partnerID)
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.idle, func() { c.expire(gen) })
}

func (c *composer) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.partner != "" {
		c.stopLocked()
	}
}

func (c *composer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partner != "" {
		c.stopLocked()
	}
}

func (c *composer) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.emit(event.EventStopTyping, c.partner)
	c.partner = ""
}
