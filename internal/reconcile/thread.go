package reconcile

import (
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/model"
)

// Thread is the ordered, deduplicated message list of one open conversation
type Thread struct {
	self     string
	partner  string
	messages []Message

	// receipts that arrived before the message they refer to
	pending map[string]Status
}

func NewThread(self, partner string) *Thread {
	return &Thread{
		self:    self,
		partner: partner,
		pending: make(map[string]Status),
	}
}

func (t *Thread) Partner() string { return t.partner }

// Messages returns a copy of the list, oldest first
func (t *Thread) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

func (t *Thread) Len() int { return len(t.messages) }

func (t *Thread) Lookup(k Key) (Message, bool) {
	if i := t.index(k); i >= 0 {
		return t.messages[i], true
	}
	return Message{}, false
}

func (t *Thread) index(k Key) int {
	for i := range t.messages {
		m := &t.messages[i]
		// temp keys name this user's own sends only
		if !k.IsConfirmed() && m.SenderID != "" && m.SenderID != t.self {
			continue
		}
		if m.Has(k) {
			return i
		}
	}
	return -1
}

// InsertOptimistic appends the local copy of a send the user just made
func (t *Thread) InsertOptimistic(tempID, content string, image *string, parentMessageID string, now time.Time) Message {
	m := Message{
		TempID:          tempID,
		SenderID:        t.self,
		RecipientID:     t.partner,
		Content:         content,
		Image:           image,
		ParentMessageID: parentMessageID,
		CreatedAt:       now,
		Status:          StatusSending,
	}
	t.messages = append(t.messages, m)
	return m
}

// ApplyAck replaces the optimistic entry with the confirmed record, keeping
// its position in the list
func (t *Thread) ApplyAck(ack model.MessageSent) {
	confirmed := Message{
		ServerID:  ack.MessageID,
		TempID:    ack.ClientTempID,
		CreatedAt: ack.CreatedAt,
		Status:    StatusSent,
	}
	if ack.Message != nil {
		confirmed = combine(FromServer(*ack.Message), confirmed)
	}
	t.upsertInPlace(confirmed)
}

// ApplyDelivered advances a sent message to delivered. The receipt may beat
// the ack when the send went over REST, so the temp id is tried as well.
func (t *Thread) ApplyDelivered(d model.MessageDelivered) {
	t.advance(d.MessageID, d.ClientTempID, StatusDelivered)
}

// ApplyRead applies a single-message read receipt. A receipt never un-reads.
func (t *Thread) ApplyRead(r model.MessageRead) {
	if !r.IsRead {
		return
	}
	t.advance(r.MessageID, "", StatusRead)
}

// ApplyBulkRead marks every listed message read
func (t *Thread) ApplyBulkRead(messageIDs []string) {
	for _, id := range messageIDs {
		t.advance(id, "", StatusRead)
	}
}

// ApplyIncoming merges a pushed message. It reports false, leaving the list
// alone, when the message belongs to another conversation.
func (t *Thread) ApplyIncoming(msg model.Message) bool {
	if !msg.Involves(t.self, t.partner) {
		return false
	}
	t.merge([]Message{FromServer(msg)})
	return true
}

// ApplyPage merges a fetched history page
func (t *Thread) ApplyPage(page []model.Message) {
	incoming := make([]Message, 0, len(page))
	for _, msg := range page {
		if msg.Involves(t.self, t.partner) {
			incoming = append(incoming, FromServer(msg))
		}
	}
	t.merge(incoming)
}

// MarkFailed flags an optimistic send the server rejected. Confirmed
// messages are never marked failed.
func (t *Thread) MarkFailed(tempID, reason string) {
	i := t.index(Temporary(tempID))
	if i < 0 || t.messages[i].ServerID != "" {
		return
	}
	t.messages[i].Failed = true
	t.messages[i].FailureReason = reason
}

// Retry puts a failed send back to sending under the same temp id. It
// reports false unless tempID names an unconfirmed failed send.
func (t *Thread) Retry(tempID string) (Message, bool) {
	i := t.index(Temporary(tempID))
	if i < 0 {
		return Message{}, false
	}
	m := &t.messages[i]
	if !m.Failed || m.ServerID != "" {
		return Message{}, false
	}
	m.Failed = false
	m.FailureReason = ""
	m.Status = StatusSending
	return *m, true
}

// Remove drops a message deleted by its sender
func (t *Thread) Remove(k Key) bool {
	i := t.index(k)
	if i < 0 {
		return false
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	return true
}

// HasUnreadFromPartner reports whether the partner has messages this user
// has not read yet
func (t *Thread) HasUnreadFromPartner() bool {
	for _, m := range t.messages {
		if m.SenderID == t.partner && !m.IsRead {
			return true
		}
	}
	return false
}

// MarkIncomingRead optimistically marks the partner's messages read
func (t *Thread) MarkIncomingRead() {
	for i := range t.messages {
		if t.messages[i].SenderID == t.partner {
			t.messages[i] = combine(t.messages[i], Message{IsRead: true})
		}
	}
}

func (t *Thread) advance(serverID, tempID string, to Status) {
	i := -1
	if serverID != "" {
		i = t.index(Confirmed(serverID))
	}
	if i < 0 && tempID != "" {
		i = t.index(Temporary(tempID))
	}
	if i < 0 {
		if serverID != "" {
			t.pending[serverID] = Advance(t.pending[serverID], to)
		}
		return
	}

	update := Message{ServerID: serverID, Status: to, IsRead: to == StatusRead}
	t.messages[i] = combine(t.messages[i], update)
}

func (t *Thread) upsertInPlace(m Message) {
	m = t.withPending(m)
	for i := range t.messages {
		if t.messages[i].sameAs(m) {
			t.messages = upsert(t.messages, m)
			return
		}
	}
	t.messages = append(t.messages, m)
	sortMessages(t.messages)
}

func (t *Thread) merge(incoming []Message) {
	for i := range incoming {
		incoming[i] = t.withPending(incoming[i])
	}
	t.messages = Merge(t.messages, incoming)
}

// withPending applies a receipt that was waiting for m to show up
func (t *Thread) withPending(m Message) Message {
	if m.ServerID == "" {
		return m
	}
	status, ok := t.pending[m.ServerID]
	if !ok {
		return m
	}
	delete(t.pending, m.ServerID)
	return combine(m, Message{Status: status, IsRead: status == StatusRead})
}
