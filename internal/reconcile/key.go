// Package reconcile keeps a client's view of its conversations consistent
// while acks, receipts, pushes and REST pages arrive in any order. Nothing in
// here performs I/O.
package reconcile

// Key identifies a message in a local list: by the id the client made up for
// an optimistic send until the server id is known, and by the server id after.
type Key struct {
	confirmed bool
	id        string
}

func Temporary(tempID string) Key {
	return Key{id: tempID}
}

func Confirmed(serverID string) Key {
	return Key{confirmed: true, id: serverID}
}

func (k Key) IsConfirmed() bool { return k.confirmed }
func (k Key) ID() string        { return k.id }
func (k Key) IsZero() bool      { return k.id == "" }

func (k Key) String() string {
	if k.confirmed {
		return "confirmed:" + k.id
	}
	return "temporary:" + k.id
}
