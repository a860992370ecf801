package event

import "encoding/json"

// Client to Server
const (
	EventJoinRoom             = "join_room"
	EventSendMessage          = "send_message"
	EventTyping               = "typing"
	EventStopTyping           = "stop_typing"
	EventMarkAsRead           = "mark_as_read"
	EventMarkConversationRead = "mark_conversation_read"
)

// Server to Client
const (
	EventReceiveMessage      = "receive_message"
	EventMessageSent         = "message_sent"
	EventMessageDelivered    = "message_delivered"
	EventMessageError        = "message_error"
	EventUserTyping          = "user_typing"
	EventUserStoppedTyping   = "user_stopped_typing"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventConversationUpdated = "conversation_updated"
	EventMessageRead         = "message_read"
	EventMessagesRead        = "messages_read"
	EventMessageDeleted      = "message_deleted"
)

// WsEvent is the frame exchanged over the gateway in both directions
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with payload marshalled to JSON
func New(name string, payload any) (WsEvent, error) {
	if payload == nil {
		return WsEvent{Event: name}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, err
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// Decode unmarshals the payload into v
func (ev WsEvent) Decode(v any) error {
	if len(ev.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(ev.Payload, v)
}
