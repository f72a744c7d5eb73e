package session

import (
	"sync"

	"github.com/linguaflow/lingua-core/internal/translate"
)

// frameQueue is the unbounded inbound playback queue. It preserves remote
// emission order until drained; DrainAll implements the barge-in discard of
// not-yet-played translation audio when a response turn completes.
type frameQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frames []translate.Frame
	closed bool
}

func newFrameQueue() *frameQueue {
	q := &frameQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame. Frames pushed after Close are discarded.
func (q *frameQueue) Push(frame translate.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.frames = append(q.frames, frame)
	q.cond.Signal()
}

// Pop blocks until a frame is available or the queue is closed. The second
// return value is false once the queue is closed and empty.
func (q *frameQueue) Pop() (translate.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.frames) == 0 {
		return translate.Frame{}, false
	}
	frame := q.frames[0]
	q.frames = q.frames[1:]
	return frame, true
}

// DrainAll discards every queued frame and reports how many were dropped.
func (q *frameQueue) DrainAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.frames)
	q.frames = nil
	return n
}

// Len reports the number of queued frames.
func (q *frameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close wakes all blocked consumers. Idempotent.
func (q *frameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
