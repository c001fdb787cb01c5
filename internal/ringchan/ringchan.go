package ringchan

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
// It wraps an underlying buffered channel and ensures producers never block
// indefinitely: if the buffer is full, the oldest element is discarded. This
// is the delivery policy for all monitor output streams; a slow subscriber
// loses old telemetry rather than stalling the radio event pipeline.
//
// Writers use Send or TrySend. Readers use C() as a normal <-chan T.
type RingChannel[T any] struct {
	ch chan T
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
// Consumers can range over this until it is closed.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts an item, discarding the oldest buffered element if full.
// It never blocks indefinitely. Reports whether an element was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	dropped := false

	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch: // drop oldest
			dropped = true
		default:
			// Consumer drained the buffer between selects; slot is free now.
		}
		rc.ch <- v
	}

	return dropped
}

// TrySend attempts to insert without blocking.
// Returns false if the buffer is full.
func (rc *RingChannel[T]) TrySend(v T) bool {
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. After this, Send panics.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}
