// Package transport moves frames from the capture process to the
// processing process over a local websocket link, buffering at most a
// fixed number of frames on each side.
//
// The buffering policy is drop-oldest: a slow consumer costs frames,
// never capture latency. Drop frames, never queue.
package transport

import (
	"errors"
	"sync"

	"github.com/maskpipe/maskpipe/internal/frame"
)

var (
	ErrInvalidCapacity = errors.New("transport: capacity must be >= 1")
	ErrClosed          = errors.New("transport: closed")
)

// RingStats is a snapshot of ring counters.
type RingStats struct {
	// Enqueued counts frames accepted, including ones later overwritten.
	Enqueued uint64

	// Dropped counts frames lost: overwritten while buffered, or
	// rejected after Close.
	Dropped uint64
}

// Ring is a fixed-capacity frame buffer. TryEnqueue never blocks: when
// the ring is full the oldest buffered frame is discarded so the new one
// fits. Dequeue blocks until a frame is buffered or the ring is closed;
// frames buffered at close time still drain. FIFO, so frames come out in
// the order (and therefore the sequence order) they went in.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf      []*frame.Frame
	capacity int
	closed   bool

	enqueued uint64
	dropped  uint64
}

// NewRing creates a ring holding at most capacity frames.
func NewRing(capacity int) (*Ring, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	r := &Ring{
		buf:      make([]*frame.Frame, 0, capacity),
		capacity: capacity,
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// TryEnqueue offers a frame without blocking. It reports whether the
// frame was accepted; frames offered after Close are discarded.
func (r *Ring) TryEnqueue(f *frame.Frame) bool {
	if f == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.dropped++
		return false
	}

	if len(r.buf) == r.capacity {
		// Full: the oldest frame loses its slot.
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
		r.dropped++
	}

	r.buf = append(r.buf, f)
	r.enqueued++
	r.cond.Signal()
	return true
}

// Dequeue blocks until a frame is available or the ring is closed and
// drained. The second return value is false only once no more frames
// will ever be produced.
func (r *Ring) Dequeue() (*frame.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.buf) == 0 && !r.closed {
		r.cond.Wait()
	}

	if len(r.buf) == 0 {
		return nil, false
	}

	f := r.buf[0]
	copy(r.buf, r.buf[1:])
	r.buf = r.buf[:len(r.buf)-1]
	return f, true
}

// Close stops intake. Buffered frames remain dequeueable; blocked
// Dequeue callers wake once the buffer drains. Idempotent.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.cond.Broadcast()
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Stats returns a counter snapshot.
func (r *Ring) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RingStats{Enqueued: r.enqueued, Dropped: r.dropped}
}
