package ethsim

import "sync"

// Sized is implemented by frame types whose queue occupancy is accounted
// in bytes.
type Sized interface {
	SizeBytes() int
}

// Queue is a strict-FIFO frame queue with byte and frame occupancy
// accounting and configurable limits. It is shared between exactly one
// producer role and one consumer role; a full queue blocks the producer
// rather than failing or dropping.
type Queue[F Sized] struct {
	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond
	frames   []F
	bytes    int
	// limits; <=0 means effectively unbounded.
	limitBytes  int
	limitFrames int
}

// NewQueue returns a Queue with the given occupancy limits in bytes and
// frames. A limit <= 0 is effectively unbounded.
func NewQueue[F Sized](limitBytes, limitFrames int) *Queue[F] {
	q := &Queue[F]{limitBytes: limitBytes, limitFrames: limitFrames}
	q.notFull.L = &q.mu
	q.notEmpty.L = &q.mu
	return q
}

// SetLimits replaces the occupancy limits. Producers blocked on a shrunk
// queue stay blocked until a dequeue; a grown queue releases them.
func (q *Queue[F]) SetLimits(limitBytes, limitFrames int) {
	q.mu.Lock()
	q.limitBytes = limitBytes
	q.limitFrames = limitFrames
	q.notFull.Broadcast()
	q.mu.Unlock()
}

func (q *Queue[F]) isFull() bool {
	return (q.limitBytes > 0 && q.bytes >= q.limitBytes) ||
		(q.limitFrames > 0 && len(q.frames) >= q.limitFrames)
}

// Enqueue appends f, blocking while the queue is full.
func (q *Queue[F]) Enqueue(f F) {
	q.mu.Lock()
	for q.isFull() {
		q.notFull.Wait()
	}
	q.push(f)
	q.mu.Unlock()
}

// TryEnqueue appends f or returns [ErrQueueFull] without blocking.
func (q *Queue[F]) TryEnqueue(f F) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isFull() {
		return ErrQueueFull
	}
	q.push(f)
	return nil
}

func (q *Queue[F]) push(f F) {
	q.frames = append(q.frames, f)
	q.bytes += f.SizeBytes()
	q.notEmpty.Signal()
}

// Dequeue removes and returns the oldest frame, blocking while empty.
func (q *Queue[F]) Dequeue() F {
	q.mu.Lock()
	for len(q.frames) == 0 {
		q.notEmpty.Wait()
	}
	f := q.pop()
	q.mu.Unlock()
	return f
}

// TryDequeue removes and returns the oldest frame without blocking.
func (q *Queue[F]) TryDequeue() (f F, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return f, false
	}
	return q.pop(), true
}

func (q *Queue[F]) pop() F {
	f := q.frames[0]
	copy(q.frames, q.frames[1:])
	var zero F
	q.frames[len(q.frames)-1] = zero
	q.frames = q.frames[:len(q.frames)-1]
	q.bytes -= f.SizeBytes()
	q.notFull.Broadcast()
	return f
}

// Count returns the number of queued frames.
func (q *Queue[F]) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// OccupancyBytes returns the summed SizeBytes of all queued frames.
func (q *Queue[F]) OccupancyBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Empty reports whether no frames are queued.
func (q *Queue[F]) Empty() bool { return q.Count() == 0 }

// Full reports whether either occupancy limit is reached.
func (q *Queue[F]) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isFull()
}

// Clear drops all queued frames without firing completion notifications
// and returns how many were dropped. Not graceful: use between frames.
func (q *Queue[F]) Clear() int {
	q.mu.Lock()
	n := len(q.frames)
	clear(q.frames)
	q.frames = q.frames[:0]
	q.bytes = 0
	q.notFull.Broadcast()
	q.mu.Unlock()
	return n
}
