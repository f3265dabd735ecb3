package ethsim

import (
	"errors"
	"testing"
	"time"
)

func mustFrame(t *testing.T, payload []byte) *Frame {
	t.Helper()
	f, err := FromPayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestQueueAccounting(t *testing.T) {
	q := NewQueue[*Frame](0, 0)
	if !q.Empty() || q.Full() {
		t.Fatal("fresh unbounded queue not empty/not-full")
	}
	a := mustFrame(t, []byte{1})
	b := mustFrame(t, make([]byte, 100))
	q.Enqueue(a)
	q.Enqueue(b)
	if q.Count() != 2 {
		t.Errorf("Count = %d, want 2", q.Count())
	}
	if want := a.SizeBytes() + b.SizeBytes(); q.OccupancyBytes() != want {
		t.Errorf("OccupancyBytes = %d, want %d", q.OccupancyBytes(), want)
	}
	got := q.Dequeue()
	if got != a {
		t.Error("Dequeue broke FIFO order")
	}
	if q.OccupancyBytes() != b.SizeBytes() {
		t.Errorf("OccupancyBytes after dequeue = %d", q.OccupancyBytes())
	}
}

func TestQueueFrameLimit(t *testing.T) {
	q := NewQueue[*Frame](0, 2)
	q.Enqueue(mustFrame(t, []byte{1}))
	q.Enqueue(mustFrame(t, []byte{2}))
	if !q.Full() {
		t.Error("queue at frame limit not Full")
	}
	if err := q.TryEnqueue(mustFrame(t, []byte{3})); !errors.Is(err, ErrQueueFull) {
		t.Errorf("TryEnqueue on full queue = %v, want ErrQueueFull", err)
	}
	q.Dequeue()
	if err := q.TryEnqueue(mustFrame(t, []byte{3})); err != nil {
		t.Errorf("TryEnqueue after dequeue = %v", err)
	}
}

func TestQueueByteLimit(t *testing.T) {
	f := mustFrame(t, []byte{1})
	q := NewQueue[*Frame](f.SizeBytes(), 0)
	q.Enqueue(f)
	// Limit reached, not merely exceeded, blocks the producer.
	if !q.Full() {
		t.Error("queue at byte limit not Full")
	}
}

func TestQueueBlockingEnqueue(t *testing.T) {
	q := NewQueue[*Frame](0, 1)
	q.Enqueue(mustFrame(t, []byte{1}))
	done := make(chan struct{})
	go func() {
		q.Enqueue(mustFrame(t, []byte{2}))
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Enqueue returned while the queue was full")
	case <-time.After(10 * time.Millisecond):
	}
	q.Dequeue()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue still blocked after a dequeue made room")
	}
}

func TestQueueBlockingDequeue(t *testing.T) {
	q := NewQueue[*Frame](0, 0)
	got := make(chan *Frame, 1)
	go func() { got <- q.Dequeue() }()
	f := mustFrame(t, []byte{7})
	q.Enqueue(f)
	select {
	case g := <-got:
		if g != f {
			t.Error("blocked Dequeue returned the wrong frame")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue still blocked after an enqueue")
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[*Frame](0, 0)
	completions := 0
	for i := 0; i < 3; i++ {
		f := mustFrame(t, []byte{byte(i)})
		f.OnComplete = func(*Frame) { completions++ }
		q.Enqueue(f)
	}
	if n := q.Clear(); n != 3 {
		t.Errorf("Clear = %d, want 3", n)
	}
	if !q.Empty() || q.OccupancyBytes() != 0 {
		t.Error("Clear left residual occupancy")
	}
	if completions != 0 {
		t.Error("Clear fired completion notifications")
	}
}

func TestQueueSetLimits(t *testing.T) {
	q := NewQueue[*Frame](0, 1)
	q.Enqueue(mustFrame(t, []byte{1}))
	done := make(chan struct{})
	go func() {
		q.Enqueue(mustFrame(t, []byte{2}))
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	q.SetLimits(0, 2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("grown limits did not release a blocked producer")
	}
}
