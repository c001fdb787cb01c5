package ringchan

import "sync"

// Broadcaster fans a stream of values out to any number of subscribers, each
// behind its own RingChannel so one stalled consumer never blocks the
// publisher or the other consumers.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*RingChannel[T]
	nextID uint64
	buffer int
	closed bool
}

// NewBroadcaster creates a Broadcaster whose subscriber channels buffer up to
// the given number of elements before dropping the oldest.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		panic("ringchan: broadcaster buffer must be > 0")
	}
	return &Broadcaster[T]{
		subs:   make(map[uint64]*RingChannel[T]),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer and returns its receive channel along
// with a cancel function. Cancel is idempotent and closes the channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rc := New[T](b.buffer)
	if b.closed {
		rc.Close()
		return rc.C(), func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = rc

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				rc.Close()
			}
		})
	}
	return rc.C(), cancel
}

// Publish delivers v to every current subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, rc := range b.subs {
		rc.Send(v)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Further Publish calls are no-ops.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, rc := range b.subs {
		delete(b.subs, id)
		rc.Close()
	}
}
