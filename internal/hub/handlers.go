package hub

import (
	"context"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
	"github.com/harshhpatil/recipegramapp-sub000/internal/service"

	"go.uber.org/zap"
)

// persistTimeout bounds a handler's store call. It derives from the hub, not
// the connection, so a write in flight finishes even if the client leaves.
const persistTimeout = 10 * time.Second

func (h *Hub) dispatch(ev event.WsEvent, c *Client) {
	if c.State() == StateDisconnected {
		return
	}

	if !c.Joined() {
		if ev.Event != event.EventJoinRoom {
			h.logger.Debug("ignoring event before join",
				zap.String("client_id", c.ID),
				zap.String("event", ev.Event),
			)
			return
		}
		h.handleJoin(c)
		return
	}

	c.advance(StateActive)

	switch ev.Event {
	case event.EventJoinRoom:
		// already joined
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventTyping:
		h.handleTyping(ev, c, event.EventUserTyping)
	case event.EventStopTyping:
		h.handleTyping(ev, c, event.EventUserStoppedTyping)
	case event.EventMarkAsRead:
		h.handleMarkAsRead(ev, c)
	case event.EventMarkConversationRead:
		h.handleMarkConversationRead(ev, c)
	default:
		h.logger.Debug("unknown event type", zap.String("client_id", c.ID), zap.String("event", ev.Event))
	}
}

// handleJoin subscribes the connection to the private channel of its own
// user. Any room id in the payload is ignored.
func (h *Hub) handleJoin(c *Client) {
	if c.advance(StateJoined) {
		h.logger.Debug("client joined private channel",
			zap.String("client_id", c.ID),
			zap.String("user_id", c.userID),
		)
	}
}

func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	var payload model.SendMessagePayload
	if err := ev.Decode(&payload); err != nil {
		h.logger.Debug("invalid send_message payload", zap.String("client_id", c.ID), zap.Error(err))
		return
	}

	if !c.limiter.Allow() {
		h.sendError(c, apperror.RateLimited("sending too fast, slow down"), payload.ClientTempID)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()

	msg, err := h.messages.Send(ctx, service.SendInput{
		SenderID:        c.userID,
		RecipientID:     payload.RecipientID,
		Content:         payload.Content,
		Image:           payload.Image,
		ParentMessageID: payload.ParentMessageID,
		ClientTempID:    payload.ClientTempID,
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			h.logger.Error("send_message failed",
				zap.String("client_id", c.ID),
				zap.String("user_id", c.userID),
				zap.Error(err),
			)
		}
		h.sendError(c, err, payload.ClientTempID)
		return
	}

	// ack goes to the sending connection itself, ahead of any receipt
	ack, err := event.New(event.EventMessageSent, model.MessageSent{
		MessageID:    msg.ID.Hex(),
		CreatedAt:    msg.CreatedAt,
		ClientTempID: payload.ClientTempID,
		Message:      msg,
	})
	if err == nil {
		h.deliver(c, ack)
	}

	h.NotifyMessageSent(msg, payload.ClientTempID)
}

func (h *Hub) handleTyping(ev event.WsEvent, c *Client, outgoing string) {
	var payload model.TypingPayload
	if err := ev.Decode(&payload); err != nil || payload.RecipientID == "" {
		h.logger.Debug("invalid typing payload", zap.String("client_id", c.ID))
		return
	}
	if payload.RecipientID == c.userID {
		return
	}

	if outgoing == event.EventUserTyping {
		h.emit(payload.RecipientID, outgoing, model.UserTyping{UserID: c.userID, Username: c.username})
		return
	}
	h.emit(payload.RecipientID, outgoing, model.UserStoppedTyping{UserID: c.userID})
}

func (h *Hub) handleMarkAsRead(ev event.WsEvent, c *Client) {
	var payload model.MarkAsReadPayload
	if err := ev.Decode(&payload); err != nil || payload.MessageID == "" {
		h.logger.Debug("invalid mark_as_read payload", zap.String("client_id", c.ID))
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()

	msg, changed, err := h.messages.MarkRead(ctx, c.userID, payload.MessageID)
	if err != nil {
		h.sendError(c, err, "")
		return
	}

	if changed {
		h.NotifyMessageRead(msg)
	}
}

func (h *Hub) handleMarkConversationRead(ev event.WsEvent, c *Client) {
	var payload model.MarkConversationReadPayload
	if err := ev.Decode(&payload); err != nil || payload.PartnerID == "" {
		h.logger.Debug("invalid mark_conversation_read payload", zap.String("client_id", c.ID))
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, persistTimeout)
	defer cancel()

	ids, err := h.messages.MarkConversationRead(ctx, c.userID, payload.PartnerID)
	if err != nil {
		h.sendError(c, err, "")
		return
	}

	h.NotifyConversationRead(c.userID, payload.PartnerID, ids)
}
