package threadloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferQueueFIFOAcrossChunks(t *testing.T) {
	var q DeferQueue

	// Spans three chunks.
	const n = deferChunkSize*2 + 44
	var got []int
	for i := 0; i < n; i++ {
		i := i
		q.Push(func() { got = append(got, i) })
	}
	require.Equal(t, n, q.Len())

	for {
		fn, ok := q.Pop()
		if !ok {
			break
		}
		fn()
	}

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v)
	}
	assert.Zero(t, q.Len())
}

func TestDeferQueueInterleavedPushPop(t *testing.T) {
	var q DeferQueue

	var got []int
	push := func(i int) { q.Push(func() { got = append(got, i) }) }
	pop := func() bool {
		fn, ok := q.Pop()
		if ok {
			fn()
		}
		return ok
	}

	push(0)
	push(1)
	require.True(t, pop())
	push(2)
	require.True(t, pop())
	require.True(t, pop())
	require.False(t, pop())
	require.Equal(t, []int{0, 1, 2}, got)

	// The queue is reusable after draining to empty.
	push(3)
	require.Equal(t, 1, q.Len())
	require.True(t, pop())
	require.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestDeferQueuePopEmpty(t *testing.T) {
	var q DeferQueue
	fn, ok := q.Pop()
	assert.Nil(t, fn)
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestDeferQueueReset(t *testing.T) {
	var q DeferQueue
	for i := 0; i < deferChunkSize+1; i++ {
		q.Push(func() {})
	}
	require.Equal(t, deferChunkSize+1, q.Len())

	q.reset()
	assert.Zero(t, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(func() {})
	assert.Equal(t, 1, q.Len())
}

func TestDeferQueueConcurrentProducers(t *testing.T) {
	var q DeferQueue

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(func() {})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())
	var drained int
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		drained++
	}
	require.Equal(t, producers*perProducer, drained)
}
