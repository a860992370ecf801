package reconcile

import (
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
)

// Inbox is the conversation list, most recent first. Rows are updated in
// place from confirmed events and replaced wholesale by a REST fetch.
type Inbox struct {
	self string
	rows []model.ConversationSummary
}

func NewInbox(self string) *Inbox {
	return &Inbox{self: self}
}

// Replace installs the rows returned by the conversation list endpoint
func (in *Inbox) Replace(rows []model.ConversationSummary) {
	in.rows = append([]model.ConversationSummary(nil), rows...)
}

func (in *Inbox) Rows() []model.ConversationSummary {
	return append([]model.ConversationSummary(nil), in.rows...)
}

func (in *Inbox) Row(partnerID string) (model.ConversationSummary, bool) {
	if i := in.index(partnerID); i >= 0 {
		return in.rows[i], true
	}
	return model.ConversationSummary{}, false
}

func (in *Inbox) Unread(partnerID string) int64 {
	row, _ := in.Row(partnerID)
	return row.UnreadCount
}

func (in *Inbox) TotalUnread() int64 {
	var n int64
	for _, row := range in.rows {
		n += row.UnreadCount
	}
	return n
}

// ApplyIncoming moves the message's conversation to the top. The unread
// counter grows only for messages from the partner in a conversation that
// is not open.
func (in *Inbox) ApplyIncoming(msg model.Message, openPartner string) {
	partner := msg.PartnerOf(in.self)
	row := in.take(partner)
	row.LastMessageID = msg.ID.Hex()
	row.LastMessage = msg.Content
	row.LastMessageTime = msg.CreatedAt
	row.LastSenderID = msg.SenderID
	row.IsLastMessageFromMe = msg.SenderID == in.self
	if row.Partner == nil && msg.Sender != nil && msg.SenderID == partner {
		row.Partner = msg.Sender
	}
	if msg.SenderID == partner && partner != openPartner && !msg.IsRead {
		row.UnreadCount++
	}
	in.pushFront(row)
}

// ApplyConversationUpdated moves the row for the given partner to the top
// without touching its unread counter
func (in *Inbox) ApplyConversationUpdated(u model.ConversationUpdated) {
	row := in.take(u.UserID)
	if !u.LastMessageTime.Before(row.LastMessageTime) {
		row.LastMessage = u.LastMessage
		row.LastMessageTime = u.LastMessageTime
	}
	in.pushFront(row)
}

// ApplySent records a message this user sent from this client
func (in *Inbox) ApplySent(partnerID, content string, at time.Time) {
	row := in.take(partnerID)
	row.LastMessage = content
	row.LastMessageTime = at
	row.LastSenderID = in.self
	row.IsLastMessageFromMe = true
	in.pushFront(row)
}

// Open zeroes the partner's unread counter ahead of server confirmation
func (in *Inbox) Open(partnerID string) {
	if i := in.index(partnerID); i >= 0 {
		in.rows[i].UnreadCount = 0
	}
}

func (in *Inbox) index(partnerID string) int {
	for i := range in.rows {
		if in.rows[i].PartnerID == partnerID {
			return i
		}
	}
	return -1
}

// take removes and returns the row for partnerID, or a fresh one
func (in *Inbox) take(partnerID string) model.ConversationSummary {
	i := in.index(partnerID)
	if i < 0 {
		return model.ConversationSummary{PartnerID: partnerID}
	}
	row := in.rows[i]
	in.rows = append(in.rows[:i], in.rows[i+1:]...)
	return row
}

func (in *Inbox) pushFront(row model.ConversationSummary) {
	in.rows = append([]model.ConversationSummary{row}, in.rows...)
}
