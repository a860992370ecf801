package model

import "time"

// -----------------------------------------------------------------
// WebSocket Event Payloads - Client to Server
// -----------------------------------------------------------------

// SendMessagePayload is sent by a client to deliver a direct message
type SendMessagePayload struct {
	RecipientID     string  `json:"recipientId"`
	Content         string  `json:"content"`
	Image           *string `json:"image,omitempty"`
	ParentMessageID string  `json:"parentMessageId,omitempty"`
	ClientTempID    string  `json:"clientTempId,omitempty"`
}

// TypingPayload is used for both typing and stop_typing
type TypingPayload struct {
	RecipientID string `json:"recipientId"`
}

// MarkAsReadPayload marks a single message read
type MarkAsReadPayload struct {
	MessageID string `json:"messageId"`
}

// MarkConversationReadPayload marks every unread message from a partner read
type MarkConversationReadPayload struct {
	PartnerID string `json:"partnerId"`
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Server to Client
// -----------------------------------------------------------------

// MessageSent acknowledges a send to the sender, echoing the client temp id
type MessageSent struct {
	MessageID    string    `json:"messageId"`
	CreatedAt    time.Time `json:"createdAt"`
	ClientTempID string    `json:"clientTempId,omitempty"`
	Message      *Message  `json:"message"`
}

// MessageDelivered tells the sender the recipient's connection received the message
type MessageDelivered struct {
	MessageID    string    `json:"messageId"`
	ClientTempID string    `json:"clientTempId,omitempty"`
	DeliveredAt  time.Time `json:"deliveredAt"`
}

// MessageError reports a failed operation to the originating connection only
type MessageError struct {
	Message      string `json:"message"`
	Error        string `json:"error"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

// UserTyping - typing indicator
type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserStoppedTyping - typing indicator cleared
type UserStoppedTyping struct {
	UserID string `json:"userId"`
}

// UserOnline - presence gained
type UserOnline struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserOffline - presence lost
type UserOffline struct {
	UserID string `json:"userId"`
}

// ConversationUpdated moves a conversation row to the top of the receiver's inbox
type ConversationUpdated struct {
	UserID          string    `json:"userId"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}

// MessageRead - read receipt for a single message
type MessageRead struct {
	MessageID string `json:"messageId"`
	IsRead    bool   `json:"isRead"`
}

// MessagesRead - bulk read receipt for a conversation
type MessagesRead struct {
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

// MessageDeleted tells the partner a message was removed by its sender
type MessageDeleted struct {
	MessageID string `json:"messageId"`
	SenderID  string `json:"senderId"`
}
