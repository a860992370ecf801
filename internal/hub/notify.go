package hub

import (
	"github.com/harshhpatil/recipegramapp-sub000/internal/event"
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"go.uber.org/zap"
)

// NotifyMessageSent fans a persisted message out to the recipient and
// updates both inboxes. The sender hears message_delivered only when the
// recipient's connection accepted the frame.
func (h *Hub) NotifyMessageSent(msg *model.Message, clientTempID string) {
	ev, err := event.New(event.EventReceiveMessage, msg)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("message_id", msg.ID.Hex()), zap.Error(err))
		return
	}

	receipt := &DeliveryReceipt{
		SenderID:     msg.SenderID,
		MessageID:    msg.ID.Hex(),
		ClientTempID: clientTempID,
	}

	if h.emitEvent(msg.RecipientID, ev, receipt) {
		h.emitDelivered(receipt)
	}

	h.emit(msg.SenderID, event.EventConversationUpdated, model.ConversationUpdated{
		UserID:          msg.RecipientID,
		LastMessage:     msg.Content,
		LastMessageTime: msg.CreatedAt,
	})
	h.emit(msg.RecipientID, event.EventConversationUpdated, model.ConversationUpdated{
		UserID:          msg.SenderID,
		LastMessage:     msg.Content,
		LastMessageTime: msg.CreatedAt,
	})
}

func (h *Hub) emitDelivered(receipt *DeliveryReceipt) {
	h.emit(receipt.SenderID, event.EventMessageDelivered, model.MessageDelivered{
		MessageID:    receipt.MessageID,
		ClientTempID: receipt.ClientTempID,
		DeliveredAt:  h.now().UTC(),
	})
}

// NotifyMessageRead sends the read receipt to the message's sender
func (h *Hub) NotifyMessageRead(msg *model.Message) {
	h.emit(msg.SenderID, event.EventMessageRead, model.MessageRead{
		MessageID: msg.ID.Hex(),
		IsRead:    msg.IsRead,
	})
}

// NotifyConversationRead sends the bulk receipt to the partner whose
// messages were read. Nothing is sent when no message changed.
func (h *Hub) NotifyConversationRead(readerID, partnerID string, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	h.emit(partnerID, event.EventMessagesRead, model.MessagesRead{
		ReaderID:   readerID,
		MessageIDs: messageIDs,
	})
}

func (h *Hub) NotifyMessageDeleted(msg *model.Message) {
	h.emit(msg.RecipientID, event.EventMessageDeleted, model.MessageDeleted{
		MessageID: msg.ID.Hex(),
		SenderID:  msg.SenderID,
	})
}
