package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a direct message between two users in MongoDB
type Message struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	SenderID        string              `json:"senderId" bson:"sender_id"`
	RecipientID     string              `json:"recipientId" bson:"recipient_id"`
	Content         string              `json:"content" bson:"content"`
	Image           *string             `json:"image,omitempty" bson:"image,omitempty"`
	ParentMessageID *primitive.ObjectID `json:"parentMessageId,omitempty" bson:"parent_message_id,omitempty"`
	IsRead          bool                `json:"isRead" bson:"is_read"`
	ReadAt          *time.Time          `json:"readAt,omitempty" bson:"read_at,omitempty"`
	CreatedAt       time.Time           `json:"createdAt" bson:"created_at"`
	ClientTempID    string              `json:"clientTempId,omitempty" bson:"client_temp_id,omitempty"`

	// populated on read paths, never stored
	ParentMessage *MessagePreview `json:"parentMessage,omitempty" bson:"-"`
	Sender        *UserSummary    `json:"sender,omitempty" bson:"-"`
}

// MessagePreview is the reply-to snippet embedded in a message payload
type MessagePreview struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Preview returns the reply-to snippet for m
func (m *Message) Preview() *MessagePreview {
	return &MessagePreview{
		ID:        m.ID.Hex(),
		SenderID:  m.SenderID,
		Content:   m.Content,
		Image:     m.Image,
		CreatedAt: m.CreatedAt,
	}
}

// PartnerOf returns the other participant of m from userID's point of view
func (m *Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Involves reports whether m was exchanged between a and b, in either direction
func (m *Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

// MessagePage is one page of a conversation, oldest first
type MessagePage struct {
	Messages   []Message `json:"messages"`
	Page       int64     `json:"page"`
	Limit      int64     `json:"limit"`
	Total      int64     `json:"total"`
	TotalPages int64     `json:"totalPages"`
}
