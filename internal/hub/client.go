package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// State is the lifecycle position of a gateway connection
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	inboundSendTimeout = 500 * time.Millisecond // timeout for handing a frame to the dispatcher
	closeGrace         = 5 * time.Second        // force close if the writer does not exit
)

type Client struct {
	ID          string
	userID      string
	username    string
	connectedAt time.Time

	conn    *websocket.Conn
	hub     *Hub
	egress  chan event.WsEvent
	inbound chan event.WsEvent
	limiter *rate.Limiter
	state   atomic.Int32

	// cancel or stop goroutine
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	connClosed chan struct{}
	closedOnce sync.Once
}

func newClient(userID, username string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(h.ctx)

	limit := rate.Inf
	if h.opts.MessageRate > 0 {
		limit = rate.Limit(h.opts.MessageRate)
	}

	c := &Client{
		ID:          uuid.New().String(),
		userID:      userID,
		username:    username,
		connectedAt: time.Now().UTC(),
		conn:        conn,
		hub:         h,
		egress:      make(chan event.WsEvent, h.opts.SendBufferSize),
		inbound:     make(chan event.WsEvent, h.opts.InboundQueueSize),
		limiter:     rate.NewLimiter(limit, h.opts.MessageBurst),
		ctx:         ctx,
		cancel:      cancel,
		connClosed:  make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Client) UserID() string   { return c.userID }
func (c *Client) Username() string { return c.username }

func (c *Client) State() State {
	return State(c.state.Load())
}

// advance moves the connection forward only; disconnected is terminal
func (c *Client) advance(to State) bool {
	for {
		cur := c.state.Load()
		if State(cur) >= to {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// Joined reports whether the connection subscribed to its private channel
func (c *Client) Joined() bool {
	s := c.State()
	return s == StateJoined || s == StateActive
}

func (c *Client) readPump() {
	defer c.hub.wg.Done()
	defer c.hub.disconnect(c)

	c.conn.SetReadLimit(int64(maxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	log := c.hub.logger.With(zap.String("client_id", c.ID), zap.String("user_id", c.userID))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Debug("client disconnected")
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Info("client timed out, closing connection")
				return
			}

			log.Debug("read loop exiting", zap.Error(err))
			return
		}

		// a frame that does not decode is dropped; the channel stays open
		var ev event.WsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug("ignoring malformed frame", zap.Int("size", len(data)), zap.Error(err))
			continue
		}

		// hand off without blocking the reader for long
		select {
		case c.inbound <- ev:
		case <-time.After(inboundSendTimeout):
			log.Warn("inbound queue full, dropping client")
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// dispatchPump runs this connection's events one at a time in arrival order.
// Every connection has its own, so a slow handler only holds up its own user.
func (c *Client) dispatchPump() {
	defer c.hub.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.inbound:
			c.hub.safeDispatch(c, ev)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)

	defer c.hub.wg.Done()
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.closedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Debug("write failed",
					zap.String("client_id", c.ID),
					zap.String("event", ev.Event),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		// Wait for writePump to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(closeGrace):
				if c.conn != nil {
					_ = c.conn.Close()
				}
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	return c.ctx.Err() != nil
}

// SafeSend queues ev for the writer. It reports false when the client is
// closed or its queue stayed full for timeout.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-timer.C:
		return false
	}
}
