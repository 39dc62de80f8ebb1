package engine

// DefaultRingCapacity applies when a ring is built with a non-positive capacity.
const DefaultRingCapacity = 100

// Ring is a fixed-capacity buffer that drops its oldest entry when full.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Items returns the entries oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n of the newest entries, oldest first.
func (r *Ring[T]) Last(n int) []T {
	items := r.Items()
	if n >= 0 && n < len(items) {
		return items[len(items)-n:]
	}
	return items
}

// Pop removes and returns the newest entry.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	r.size--
	i := (r.start + r.size) % len(r.buf)
	v := r.buf[i]
	r.buf[i] = zero
	return v, true
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return len(r.buf) }
