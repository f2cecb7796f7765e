package threadloop

import (
	"container/heap"
	"sync"
	"time"
)

// timerSet is the timer min-heap shared by the built-in engines. The heap
// orders pending fires by deadline; the loop asks for the next poll timeout
// before blocking and fires due entries after each wait.
type timerSet struct {
	mu   sync.Mutex
	heap engineTimerHeap
}

// engineTimer implements NativeTimer for the built-in engines.
type engineTimer struct {
	set    *timerSet
	wake   func()
	fn     func()
	repeat time.Duration
	closed bool
}

// Set arms the timer. Waking the loop forces an in-flight blocking wait to
// recompute its timeout against the new deadline.
func (t *engineTimer) Set(fireAfter, repeat time.Duration, fn func()) {
	t.set.mu.Lock()
	t.fn = fn
	t.repeat = repeat
	heap.Push(&t.set.heap, timerEntry{when: time.Now().Add(fireAfter), t: t})
	t.set.mu.Unlock()
	t.wake()
}

// Close disarms the timer. Heap entries are discarded lazily when popped.
func (t *engineTimer) Close() {
	t.set.mu.Lock()
	t.closed = true
	t.fn = nil
	t.set.mu.Unlock()
}

// nextTimeoutMillis returns the poll timeout in milliseconds: -1 to block
// indefinitely, 0 to not block at all.
func (s *timerSet) nextTimeoutMillis() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.heap) > 0 && s.heap[0].t.closed {
		heap.Pop(&s.heap)
	}
	if len(s.heap) == 0 {
		return -1
	}
	delay := time.Until(s.heap[0].when)
	if delay <= 0 {
		return 0
	}
	// Ceiling rounding: a sub-millisecond delay still blocks for 1ms
	// rather than spinning.
	if delay < time.Millisecond {
		return 1
	}
	return int(delay.Milliseconds())
}

// fire invokes every due timer and re-queues repeating ones. Callbacks run
// outside the lock, on the loop goroutine.
func (s *timerSet) fire() {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].when.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.heap).(timerEntry)
		if e.t.closed {
			s.mu.Unlock()
			continue
		}
		fn := e.t.fn
		if e.t.repeat > 0 {
			heap.Push(&s.heap, timerEntry{when: now.Add(e.t.repeat), t: e.t})
		}
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// reset discards all pending timers.
func (s *timerSet) reset() {
	s.mu.Lock()
	s.heap = nil
	s.mu.Unlock()
}

// timerEntry is one pending fire.
type timerEntry struct {
	when time.Time
	t    *engineTimer
}

// engineTimerHeap is a min-heap of pending fires, earliest deadline first.
type engineTimerHeap []timerEntry

func (h engineTimerHeap) Len() int           { return len(h) }
func (h engineTimerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h engineTimerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *engineTimerHeap) Push(x any) {
	*h = append(*h, x.(timerEntry))
}

func (h *engineTimerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timerEntry{}
	*h = old[:n-1]
	return x
}
