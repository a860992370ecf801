package reconcile

// Status is the delivery progress of a message as observed by its sender.
// It is derived from events, never stored on the server.
type Status int

const (
	StatusSending Status = iota
	StatusSent
	StatusDelivered
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// Advance returns the further of the two; status never moves backward
func Advance(current, next Status) Status {
	if next > current {
		return next
	}
	return current
}
