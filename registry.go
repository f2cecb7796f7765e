package threadloop

import (
	"runtime"
	"sync"
)

// threadLoops is the per-goroutine loop registry. Goroutines stand in for
// the OS threads of the underlying engine; each slot holds at most one
// Loop, created lazily by Get and cleared by Loop.Free.
var threadLoops = struct {
	mu    sync.Mutex
	cells map[uint64]*Loop
}{cells: make(map[uint64]*Loop)}

// Get returns the calling goroutine's Loop, creating it on first use.
//
// Options only apply to the call that creates the loop; subsequent calls on
// the same goroutine return the existing instance regardless of arguments.
//
// A loop created around a host-supplied native handle (WithNativeLoop) is
// borrowed: this layer never frees the native handle, and the caller must
// still call Free to release the extension state. Go has no goroutine
// teardown hooks, so owned loops are likewise released by an explicit Free,
// typically deferred by the owning goroutine.
func Get(opts ...Option) (*Loop, error) {
	gid := getGoroutineID()

	threadLoops.mu.Lock()
	defer threadLoops.mu.Unlock()

	if l := threadLoops.cells[gid]; l != nil {
		return l, nil
	}

	l, err := newLoop(gid, opts)
	if err != nil {
		return nil, err
	}
	threadLoops.cells[gid] = l
	return l, nil
}

// clearThreadLoop empties the registry slot for gid, but only while it
// still holds l. Permits re-creation by a later Get on the same goroutine.
func clearThreadLoop(gid uint64, l *Loop) {
	threadLoops.mu.Lock()
	if threadLoops.cells[gid] == l {
		delete(threadLoops.cells, gid)
	}
	threadLoops.mu.Unlock()
}

// getGoroutineID parses the current goroutine's ID out of the stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
