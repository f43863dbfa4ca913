package mqtt

// pending is a publish held while the broker is unreachable.
type pending struct {
	topic   string
	payload []byte
}

// backlog keeps the newest limit items in arrival order. The caller
// synchronizes access.
type backlog[T any] struct {
	items   []T
	start   int // oldest item once full
	limit   int
	dropped bool
}

func newBacklog[T any](limit int) *backlog[T] {
	return &backlog[T]{items: make([]T, 0, limit), limit: limit}
}

// add queues v, evicting the oldest item when full. It reports whether this
// is the first eviction since the last take.
func (b *backlog[T]) add(v T) bool {
	if len(b.items) < b.limit {
		b.items = append(b.items, v)
		return false
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % b.limit
	first := !b.dropped
	b.dropped = true
	return first
}

// take removes and returns every queued item, oldest first.
func (b *backlog[T]) take() []T {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]T, 0, len(b.items))
	out = append(out, b.items[b.start:]...)
	out = append(out, b.items[:b.start]...)
	b.items = b.items[:0]
	b.start = 0
	b.dropped = false
	return out
}

func (b *backlog[T]) len() int { return len(b.items) }
