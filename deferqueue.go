package threadloop

import "sync"

// deferChunkSize is the number of callbacks per node in the chunked linked
// list. 128 slots keeps a chunk around 1KB.
const deferChunkSize = 128

// DeferQueue is a multi-producer, single-consumer queue of single-shot
// callbacks. Push is safe from any goroutine; Pop belongs to the loop
// goroutine only.
//
// Storage is a chunked linked list: fixed-size arrays give cache locality
// and amortize allocations, and a sync.Pool recycles exhausted chunks to
// avoid GC thrashing under sustained deferral load.
type DeferQueue struct {
	mu     sync.Mutex
	head   *deferChunk
	tail   *deferChunk
	length int
}

// deferChunk is a fixed-size node. readPos/pos cursors give O(1) push and
// pop without shifting.
type deferChunk struct {
	fns     [deferChunkSize]func()
	next    *deferChunk
	readPos int
	pos     int
}

var deferChunkPool = sync.Pool{
	New: func() any {
		return &deferChunk{}
	},
}

func newDeferChunk() *deferChunk {
	c := deferChunkPool.Get().(*deferChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnDeferChunk recycles an exhausted chunk, clearing every written slot
// so retained closures do not leak through the pool.
func returnDeferChunk(c *deferChunk) {
	for i := 0; i < c.pos; i++ {
		c.fns[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	deferChunkPool.Put(c)
}

// Push appends fn to the queue.
func (q *DeferQueue) Push(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail == nil {
		q.tail = newDeferChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.fns) {
		next := newDeferChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.fns[q.tail.pos] = fn
	q.tail.pos++
	q.length++
}

// Pop removes and returns the oldest callback. Each call re-observes the
// queue under the lock, so work pushed while the consumer drains is seen by
// the same drain cycle.
func (q *DeferQueue) Pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == nil {
		return nil, false
	}

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			// Sole chunk exhausted: reset cursors for reuse.
			q.head.pos = 0
			q.head.readPos = 0
			return nil, false
		}
		exhausted := q.head
		q.head = q.head.next
		returnDeferChunk(exhausted)
	}

	if q.head.readPos >= q.head.pos {
		return nil, false
	}

	fn := q.head.fns[q.head.readPos]
	q.head.fns[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			exhausted := q.head
			q.head = q.head.next
			returnDeferChunk(exhausted)
		}
	}

	return fn, true
}

// Len returns the number of queued callbacks.
func (q *DeferQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// reset discards all queued callbacks, recycling every chunk.
func (q *DeferQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for c := q.head; c != nil; {
		next := c.next
		returnDeferChunk(c)
		c = next
	}
	q.head = nil
	q.tail = nil
	q.length = 0
}
