package model

import (
	"time"
)

// ConversationSummary is one inbox row: the caller's exchange with a single partner
type ConversationSummary struct {
	PartnerID           string       `json:"partnerId" bson:"_id"`
	Partner             *UserSummary `json:"partner,omitempty" bson:"partner,omitempty"`
	LastMessageID       string       `json:"lastMessageId" bson:"last_message_id"`
	LastMessage         string       `json:"lastMessage" bson:"last_message"`
	LastMessageTime     time.Time    `json:"lastMessageTime" bson:"last_message_time"`
	LastSenderID        string       `json:"-" bson:"last_sender_id"`
	UnreadCount         int64        `json:"unreadCount" bson:"unread_count"`
	IsLastMessageFromMe bool         `json:"isLastMessageFromMe" bson:"-"`
}
