package reconcile

import (
	"sort"
	"time"
)

// DefaultTypingWindow is how long a typing signal stays visible without a
// refresh
const DefaultTypingWindow = 3 * time.Second

type TypingIndicator struct {
	PartnerID string
	Username  string
	Since     time.Time
}

// TypingTracker holds who is typing to this user, keyed by partner. Entries
// expire on their own so a lost stop_typing never leaves one stuck.
type TypingTracker struct {
	window  time.Duration
	entries map[string]TypingIndicator
}

func NewTypingTracker(window time.Duration) *TypingTracker {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingTracker{
		window:  window,
		entries: make(map[string]TypingIndicator),
	}
}

func (t *TypingTracker) Start(partnerID, username string, at time.Time) {
	t.entries[partnerID] = TypingIndicator{PartnerID: partnerID, Username: username, Since: at}
}

func (t *TypingTracker) Stop(partnerID string) {
	delete(t.entries, partnerID)
}

// IsTyping reports whether partnerID has a fresh typing signal at now
func (t *TypingTracker) IsTyping(partnerID string, now time.Time) bool {
	entry, ok := t.entries[partnerID]
	if !ok {
		return false
	}
	if t.stale(entry, now) {
		delete(t.entries, partnerID)
		return false
	}
	return true
}

// Active returns the fresh indicators sorted by partner id, dropping stale ones
func (t *TypingTracker) Active(now time.Time) []TypingIndicator {
	active := make([]TypingIndicator, 0, len(t.entries))
	for id, entry := range t.entries {
		if t.stale(entry, now) {
			delete(t.entries, id)
			continue
		}
		active = append(active, entry)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].PartnerID < active[j].PartnerID })
	return active
}

func (t *TypingTracker) stale(entry TypingIndicator, now time.Time) bool {
	return now.Sub(entry.Since) >= t.window
}
