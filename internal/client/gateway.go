package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/event"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized  = errors.New("gateway rejected credentials")
	ErrGatewayClosed = errors.New("gateway connection closed")
)

const (
	writeWait    = 10 * time.Second
	eventBacklog = 256
)

// Gateway is a client connection to the realtime gateway. Events are read by
// a single goroutine into Events(); writes are serialized.
type Gateway struct {
	conn   *websocket.Conn
	events chan event.WsEvent
	done   chan struct{}
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialGateway connects with token as bearer credential and joins the user's
// private channel
func DialGateway(ctx context.Context, url, token string, logger *zap.Logger) (*Gateway, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	g := &Gateway{
		conn:   conn,
		events: make(chan event.WsEvent, eventBacklog),
		done:   make(chan struct{}),
		logger: logger,
	}
	go g.readLoop()

	if err := g.Emit(event.EventJoinRoom, struct{}{}); err != nil {
		_ = g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) readLoop() {
	defer close(g.events)
	defer g.shutdown()

	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Debug("gateway read loop exiting", zap.Error(err))
			}
			return
		}

		var ev event.WsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			g.logger.Debug("ignoring malformed gateway frame", zap.Int("size", len(data)), zap.Error(err))
			continue
		}

		select {
		case g.events <- ev:
		case <-g.done:
			return
		}
	}
}

// Events yields server events until the connection closes
func (g *Gateway) Events() <-chan event.WsEvent { return g.events }

// Done is closed once the connection is gone
func (g *Gateway) Done() <-chan struct{} { return g.done }

func (g *Gateway) Emit(name string, payload any) error {
	select {
	case <-g.done:
		return ErrGatewayClosed
	default:
	}

	ev, err := event.New(name, payload)
	if err != nil {
		return err
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := g.conn.WriteJSON(ev); err != nil {
		g.shutdown()
		return fmt.Errorf("%w: %v", ErrGatewayClosed, err)
	}
	return nil
}

// Close sends a close frame and tears the connection down
func (g *Gateway) Close() error {
	g.writeMu.Lock()
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	g.writeMu.Unlock()

	g.shutdown()
	return nil
}

func (g *Gateway) shutdown() {
	g.closeOnce.Do(func() {
		close(g.done)
		_ = g.conn.Close()
	})
}
