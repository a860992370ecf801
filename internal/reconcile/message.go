package reconcile

import (
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
)

// Message is the client-side record of one logical message. TempID is set
// for messages a client sent and is persisted with them; ServerID once the
// store has assigned one.
type Message struct {
	ServerID        string
	TempID          string
	SenderID        string
	RecipientID     string
	Content         string
	Image           *string
	ParentMessageID string
	ParentMessage   *model.MessagePreview
	IsRead          bool
	CreatedAt       time.Time
	Status          Status

	// Failed marks an optimistic send the server rejected; the UI offers a retry
	Failed        bool
	FailureReason string
}

// Key returns the confirmed key when the server id is known
func (m Message) Key() Key {
	if m.ServerID != "" {
		return Confirmed(m.ServerID)
	}
	return Temporary(m.TempID)
}

// Has reports whether m is addressed by k. A record carrying both ids
// answers to either.
func (m Message) Has(k Key) bool {
	if k.IsZero() {
		return false
	}
	if k.IsConfirmed() {
		return m.ServerID == k.ID()
	}
	return m.TempID == k.ID()
}

// sameAs reports whether a and b describe the same logical message. Temp
// ids are minted per sender, so they only match within one sender.
func (m Message) sameAs(other Message) bool {
	if m.ServerID != "" && m.ServerID == other.ServerID {
		return true
	}
	if m.TempID == "" || m.TempID != other.TempID {
		return false
	}
	return m.SenderID == "" || other.SenderID == "" || m.SenderID == other.SenderID
}

// FromServer converts a persisted message. A read message is already at
// its final status; anything else the server returns has at least been sent.
func FromServer(msg model.Message) Message {
	m := Message{
		ServerID:      msg.ID.Hex(),
		TempID:        msg.ClientTempID,
		SenderID:      msg.SenderID,
		RecipientID:   msg.RecipientID,
		Content:       msg.Content,
		Image:         msg.Image,
		ParentMessage: msg.ParentMessage,
		IsRead:        msg.IsRead,
		CreatedAt:     msg.CreatedAt,
		Status:        StatusSent,
	}
	if msg.ID.IsZero() {
		m.ServerID = ""
	}
	if msg.ParentMessageID != nil {
		m.ParentMessageID = msg.ParentMessageID.Hex()
	}
	if msg.IsRead {
		m.Status = StatusRead
	}
	return m
}

// combine folds next into prev. Later non-zero fields win, except that
// status only advances and a read message stays read.
func combine(prev, next Message) Message {
	out := prev

	if next.ServerID != "" {
		out.ServerID = next.ServerID
	}
	if next.TempID != "" {
		out.TempID = next.TempID
	}
	if next.SenderID != "" {
		out.SenderID = next.SenderID
	}
	if next.RecipientID != "" {
		out.RecipientID = next.RecipientID
	}
	if next.Content != "" {
		out.Content = next.Content
	}
	if next.Image != nil {
		out.Image = next.Image
	}
	if next.ParentMessageID != "" {
		out.ParentMessageID = next.ParentMessageID
	}
	if next.ParentMessage != nil {
		out.ParentMessage = next.ParentMessage
	}
	if !next.CreatedAt.IsZero() {
		out.CreatedAt = next.CreatedAt
	}

	out.IsRead = prev.IsRead || next.IsRead
	out.Status = Advance(prev.Status, next.Status)
	if out.IsRead {
		out.Status = StatusRead
	}

	// a confirmed message cannot be a failed send
	if out.ServerID != "" || out.Status > StatusSending {
		out.Failed = false
		out.FailureReason = ""
	} else if next.Failed {
		out.Failed = true
		out.FailureReason = next.FailureReason
	}
	return out
}
