package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"go.uber.org/zap"
)

// deliver queues ev on c. A client whose queue stays full is disconnected.
func (h *Hub) deliver(c *Client, ev event.WsEvent) bool {
	if c.SafeSend(ev, h.opts.SendTimeout) {
		return true
	}
	if !c.IsClosed() {
		h.logger.Warn("egress full, disconnecting client",
			zap.String("client_id", c.ID),
			zap.String("user_id", c.userID),
			zap.String("event", ev.Event),
		)
		c.Close()
	}
	return false
}

// sendLocal reports whether userID's joined connection on this instance
// accepted ev
func (h *Hub) sendLocal(userID string, ev event.WsEvent) bool {
	c, ok := h.Lookup(userID)
	if !ok {
		return false
	}
	return h.deliver(c, ev)
}

// emitEvent targets userID's private channel. When the user is not connected
// here the event is handed to the broker and false is returned: delivery
// elsewhere is confirmed, if at all, by a later receipt.
func (h *Hub) emitEvent(userID string, ev event.WsEvent, receipt *DeliveryReceipt) bool {
	if h.sendLocal(userID, ev) {
		return true
	}
	if h.broker == nil {
		return false
	}
	if _, local := h.registry.Lookup(userID); local {
		// connected here but not joined yet
		return false
	}
	h.publish(Envelope{UserID: userID, Event: ev, Delivery: receipt})
	return false
}

func (h *Hub) emit(userID, name string, payload any) bool {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return false
	}
	return h.emitEvent(userID, ev, nil)
}

// broadcast sends to every connection except the given user's, on every instance
func (h *Hub) broadcast(exceptUserID, name string, payload any) {
	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return
	}

	h.broadcastLocal(exceptUserID, ev)
	if h.broker != nil {
		h.publish(Envelope{Except: exceptUserID, Event: ev})
	}
}

func (h *Hub) broadcastLocal(exceptUserID string, ev event.WsEvent) {
	for _, c := range h.registry.Snapshot() {
		if c.userID == exceptUserID {
			continue
		}
		h.deliver(c, ev)
	}
}

// sendError reports a failed operation to the originating connection only
func (h *Hub) sendError(c *Client, err error, clientTempID string) {
	ev, encErr := event.New(event.EventMessageError, model.MessageError{
		Message:      apperror.PublicMessage(err),
		Error:        apperror.KindOf(err).String(),
		ClientTempID: clientTempID,
	})
	if encErr != nil {
		return
	}
	h.deliver(c, ev)
}

func writeHTTPError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apperror.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"message":   apperror.PublicMessage(err),
		"error":     apperror.KindOf(err).String(),
		"timestamp": time.Now().UTC(),
	})
}
