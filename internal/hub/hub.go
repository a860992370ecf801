package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/auth"
	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenParser validates the bearer credential presented at handshake
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type Options struct {
	InboundQueueSize int
	SendBufferSize   int
	SendTimeout      time.Duration
	MessageRate      float64
	MessageBurst     int
	AllowedOrigins   []string
	InstanceID       string
	PresenceTTL      time.Duration
}

func (o *Options) applyDefaults() {
	if o.InboundQueueSize <= 0 {
		o.InboundQueueSize = 64
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 2 * time.Second
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 10
	}
	if o.InstanceID == "" {
		o.InstanceID = uuid.New().String()
	}
	if o.PresenceTTL <= 0 {
		o.PresenceTTL = 90 * time.Second
	}
}

// Hub is the realtime gateway. Each connection drains its own inbound queue
// so its events run one at a time in arrival order, and different users
// never wait on each other's persistence calls.
type Hub struct {
	registry PresenceRegistry
	messages service.MessageService
	tokens   TokenParser
	broker   Broker
	logger   *zap.Logger
	opts     Options

	upgrader    websocket.Upgrader
	checkOrigin func(r *http.Request) bool

	// wg covers the broker loops and every connection's pumps
	wg       sync.WaitGroup
	stopMu   sync.Mutex
	stopped  bool
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
}

func NewHub(
	registry PresenceRegistry,
	messages service.MessageService,
	tokens TokenParser,
	broker Broker,
	opts Options,
	logger *zap.Logger,
) *Hub {
	opts.applyDefaults()
	if registry == nil {
		registry = NewPresenceRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:    registry,
		messages:    messages,
		tokens:      tokens,
		broker:      broker,
		logger:      logger.With(zap.String("instance_id", opts.InstanceID)),
		opts:        opts,
		checkOrigin: makeCheckOrigin(opts.AllowedOrigins),
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
		Subprotocols:    []string{"bearer"},
	}

	if broker != nil {
		h.wg.Add(2)
		go h.runBroker()
		go h.refreshPresence()
	}

	return h
}

// safeDispatch keeps one bad event from taking the connection down
func (h *Hub) safeDispatch(c *Client, ev event.WsEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				zap.String("client_id", c.ID),
				zap.String("event", ev.Event),
				zap.Any("panic", r),
			)
		}
	}()
	h.dispatch(ev, c)
}

// track reserves n goroutines on the wait group. It fails once Stop began.
func (h *Hub) track(n int) bool {
	h.stopMu.Lock()
	defer h.stopMu.Unlock()
	if h.stopped {
		return false
	}
	h.wg.Add(n)
	return true
}

// ServeWS authenticates the request and upgrades it. Credentials are checked
// before the upgrade so a rejected client never gets a socket.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		writeHTTPError(w, apperror.Forbidden("origin not allowed"))
		return
	}

	token, err := auth.BearerFromRequest(r)
	if err != nil {
		writeHTTPError(w, apperror.Auth("missing bearer token"))
		return
	}

	claims, err := h.tokens.Parse(token)
	if err != nil {
		writeHTTPError(w, apperror.Auth("invalid token"))
		return
	}

	user, err := h.messages.User(r.Context(), claims.UserID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			writeHTTPError(w, apperror.Auth("unknown user"))
			return
		}
		h.logger.Error("handshake user lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
		writeHTTPError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if !h.track(3) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	c := newClient(claims.UserID, user.Username, conn, h)
	h.connect(c)

	go c.writePump()
	go c.dispatchPump()
	go c.readPump()
}

// connect registers an authenticated client. Last socket wins: the handle it
// replaces is closed and its own exit path will not touch the registry.
func (h *Hub) connect(c *Client) {
	c.advance(StateAuthenticated)

	if previous := h.registry.Register(c.userID, c); previous != nil {
		h.logger.Info("replacing previous connection",
			zap.String("user_id", c.userID),
			zap.String("previous_client_id", previous.ID),
			zap.String("client_id", c.ID),
		)
		previous.Close()
	}

	h.logger.Info("client connected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
	)

	h.setPresence(c.userID, true)
	h.broadcast(c.userID, event.EventUserOnline, model.UserOnline{
		UserID:   c.userID,
		Username: c.username,
	})
}

// disconnect runs on the read loop's exit path. Presence is cleared before
// returning so the next lookup already sees the user offline.
func (h *Hub) disconnect(c *Client) {
	c.advance(StateDisconnected)
	removed := h.registry.Unregister(c.userID, c)
	c.Close()

	if !removed {
		return
	}

	h.logger.Info("client disconnected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.userID),
	)

	h.setPresence(c.userID, false)
	h.broadcast(c.userID, event.EventUserOffline, model.UserOffline{UserID: c.userID})
}

// Lookup returns userID's joined connection on this instance
func (h *Hub) Lookup(userID string) (*Client, bool) {
	c, ok := h.registry.Lookup(userID)
	if !ok || !c.Joined() || c.IsClosed() {
		return nil, false
	}
	return c, true
}

// IsOnline consults the local registry, then the shared presence mirror
func (h *Hub) IsOnline(ctx context.Context, userID string) bool {
	if _, ok := h.registry.Lookup(userID); ok {
		return true
	}
	if h.broker == nil {
		return false
	}
	online, err := h.broker.IsOnline(ctx, userID)
	if err != nil {
		h.logger.Warn("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return online
}

// Stop closes every connection and waits for their exit paths to finish
// before the broker goes away. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.stopMu.Lock()
		h.stopped = true
		h.stopMu.Unlock()

		h.cancel()

		for _, c := range h.registry.Snapshot() {
			c.Close()
		}

		h.wg.Wait()

		if h.broker != nil {
			if err := h.broker.Close(); err != nil {
				h.logger.Warn("broker close failed", zap.Error(err))
			}
		}
	})
}

func (h *Hub) setPresence(userID string, online bool) {
	if h.broker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.broker.SetPresence(ctx, userID, online, h.opts.PresenceTTL); err != nil {
		h.logger.Warn("failed to mirror presence", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
}

// refreshPresence keeps the mirrored presence keys of local users alive
func (h *Hub) refreshPresence() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.opts.PresenceTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			for _, c := range h.registry.Snapshot() {
				h.setPresence(c.userID, true)
			}
		}
	}
}
