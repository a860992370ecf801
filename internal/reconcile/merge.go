package reconcile

import "sort"

// Merge folds incoming into existing by key and returns a new list sorted
// oldest first. Neither input is modified. Records that turn out to be the
// same message (an optimistic entry and its confirmed copy, say) collapse
// into one.
func Merge(existing, incoming []Message) []Message {
	out := make([]Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		out = upsert(out, m)
	}
	for _, m := range incoming {
		out = upsert(out, m)
	}
	sortMessages(out)
	return out
}

// upsert merges m into the first matching entry, in place. If m bridges two
// entries (one known by temp id, one by server id) the later one is folded
// into the first and removed.
func upsert(list []Message, m Message) []Message {
	first := -1
	for i := 0; i < len(list); i++ {
		if !list[i].sameAs(m) {
			continue
		}
		if first < 0 {
			first = i
			list[i] = combine(list[i], m)
			m = list[i]
			continue
		}
		list[first] = combine(list[i], list[first])
		m = list[first]
		list = append(list[:i], list[i+1:]...)
		i--
	}
	if first < 0 {
		list = append(list, m)
	}
	return list
}

func sortMessages(list []Message) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ServerID < b.ServerID
	})
}
