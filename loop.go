package threadloop

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// clockFirstFire is the delay before the clock cache's first refresh.
	clockFirstFire = time.Millisecond

	// clockRefreshInterval is the steady-state refresh cadence.
	clockRefreshInterval = time.Second
)

// Loop is one goroutine's event loop. It wraps an opaque NativeLoop,
// exclusively owns its extension state, and layers the per-iteration
// sequence onto the engine: pre handlers, I/O dispatch (opaque to this
// layer), the wake drain of the defer queue, post handlers, and the
// cork-release invariant check.
//
// Exactly one goroutine drives a given Loop. Defer is the only operation
// contractually safe from a foreign goroutine; everything else belongs on
// the loop's own goroutine, routed through Defer when needed.
type Loop struct {
	native NativeLoop
	data   *loopData
	logger *logiface.Logger[logiface.Event]

	// gid is the goroutine the loop was created on: its registry slot.
	gid uint64

	// owned is false for loops wrapping a host-supplied native handle.
	owned bool

	freed atomic.Bool
}

// newLoop creates a loop bound to gid's registry slot. Callers hold the
// registry lock.
func newLoop(gid uint64, opts []Option) (*Loop, error) {
	cfg, err := resolveLoopConfig(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		data:   &loopData{},
		logger: cfg.logger,
		gid:    gid,
		owned:  cfg.native == nil,
	}

	native, err := cfg.engine.CreateLoop(cfg.native, Callbacks{
		OnWakeup: l.wakeup,
		OnPre:    l.pre,
		OnPost:   l.post,
	})
	if err != nil {
		return nil, fmt.Errorf("threadloop: create native loop: %w", err)
	}
	l.native = native

	timer, err := native.NewTimer()
	if err != nil {
		if l.owned {
			native.Free()
		}
		return nil, fmt.Errorf("threadloop: create clock timer: %w", err)
	}
	l.data.clockTimer = timer
	l.data.clock.refresh(time.Now())
	timer.Set(clockFirstFire, clockRefreshInterval, func() {
		l.data.clock.refresh(time.Now())
	})

	l.logger.Debug().
		Uint64("goroutine", gid).
		Bool("owned", l.owned).
		Log("loop created")

	return l, nil
}

// wakeup drains the defer queue. The drain re-observes the queue after
// every pop, so a callback that defers new work during the drain has that
// work executed within the same wake cycle.
func (l *Loop) wakeup() {
	for {
		fn, ok := l.data.deferQueue.Pop()
		if !ok {
			break
		}
		fn()
	}
}

// pre runs the pre-iteration handlers, in registration order.
func (l *Loop) pre() {
	for _, fn := range l.data.preHandlers.fns() {
		fn(l)
	}
}

// post runs the post-iteration handlers, then enforces the cork-release
// invariant: a write-buffer lock held past this point would interleave
// buffered output across iterations.
func (l *Loop) post() {
	for _, fn := range l.data.postHandlers.fns() {
		fn(l)
	}

	if l.data.corked != nil {
		fatal(l.logger, "cork-released-per-iteration",
			fmt.Sprintf("write-buffer lock (%T) still held at end of iteration", l.data.corked))
	}
}

// checkLive terminates the process if the loop has been freed. The
// extension state is gone at that point; there is nothing sane to return.
func (l *Loop) checkLive(op string) {
	if l.freed.Load() {
		fatal(l.logger, "use-after-free", op+" called on a freed loop")
	}
}

// Run actively blocks the calling goroutine inside the native engine's
// poll-and-dispatch cycle. All handler invocations and deferred callbacks
// execute synchronously on this goroutine, to completion, before the next
// blocking wait.
func (l *Loop) Run() {
	l.checkLive("Run")
	l.native.Run()
}

// Integrate passively integrates with the underlying native loop, driving
// iterations without blocking the caller. Used to embed inside a host
// runtime that owns the real loop.
func (l *Loop) Integrate() {
	l.checkLive("Integrate")
	l.native.Integrate()
}

// Defer schedules fn to execute exactly once on the loop's goroutine, and
// signals the loop's wake primitive. Callable from any goroutine, including
// the loop's own. Per-producer FIFO order is preserved; there is no
// cancellation of deferred work.
func (l *Loop) Defer(fn func()) {
	if fn == nil {
		return
	}
	l.checkLive("Defer")
	l.data.deferQueue.Push(fn)
	l.native.Wakeup()
}

// AddPreHandler registers fn to run once per iteration, before I/O
// dispatch. The first registration under a key wins: if key already has a
// pre handler the call is a no-op and reports false, and the existing
// handler keeps firing until the key is removed. Loop goroutine only.
func (l *Loop) AddPreHandler(key any, fn Handler) bool {
	l.checkLive("AddPreHandler")
	return l.data.preHandlers.add(key, fn)
}

// RemovePreHandler removes the pre handler registered under key, taking
// effect from the next iteration. Unknown keys are a harmless no-op.
func (l *Loop) RemovePreHandler(key any) {
	l.checkLive("RemovePreHandler")
	l.data.preHandlers.remove(key)
}

// AddPostHandler registers fn to run once per iteration, after I/O
// dispatch. Same key semantics as AddPreHandler.
func (l *Loop) AddPostHandler(key any, fn Handler) bool {
	l.checkLive("AddPostHandler")
	return l.data.postHandlers.add(key, fn)
}

// RemovePostHandler removes the post handler registered under key, taking
// effect from the next iteration. Unknown keys are a harmless no-op.
func (l *Loop) RemovePostHandler(key any) {
	l.checkLive("RemovePostHandler")
	l.data.postHandlers.remove(key)
}

// SetSilent suppresses the engine's liveness accounting for this loop.
func (l *Loop) SetSilent(silent bool) {
	l.checkLive("SetSilent")
	l.data.silent = silent
	l.native.SetSilent(silent)
}

// Cork records ref as the outstanding write-buffer lock. The lock itself is
// owned by higher layers; this layer only enforces that it is released
// before the current iteration ends. Loop goroutine only.
func (l *Loop) Cork(ref any) {
	l.checkLive("Cork")
	l.data.corked = ref
}

// Uncork clears the outstanding write-buffer lock.
func (l *Loop) Uncork() {
	l.checkLive("Uncork")
	l.data.corked = nil
}

// Corked returns the outstanding write-buffer lock, or nil.
func (l *Loop) Corked() any {
	return l.data.corked
}

// CachedDate returns the cached formatted timestamp and the time it was
// last refreshed. The value is stable between refreshes.
func (l *Loop) CachedDate() (string, time.Time) {
	return l.data.clock.get()
}

// Free releases the loop, exactly once: the clock timer, the extension
// state, the native handle (owned loops only; borrowed handles stay with
// the host), and the goroutine's registry slot, in that order. A second
// Free is a fatal contract violation. Must not be called while Run is
// blocked inside the loop.
func (l *Loop) Free() {
	if l.freed.Swap(true) {
		fatal(l.logger, "free-once", "loop freed twice")
	}

	l.data.teardown()

	if l.owned {
		l.freeNative()
	}

	clearThreadLoop(l.gid, l)

	l.logger.Debug().
		Uint64("goroutine", l.gid).
		Log("loop freed")
}

// freeNative releases the native handle through the owned-cleanup path. A
// borrowed handle must never travel through here: it belongs to the host
// that supplied it.
func (l *Loop) freeNative() {
	if !l.owned {
		fatal(l.logger, "owned-cleanup", "attempted to free a borrowed native loop")
	}
	l.native.Free()
}

// Run runs the calling goroutine's lazily created loop. It is the blocking
// entry point for goroutines that only need default loop configuration.
func Run() error {
	l, err := Get()
	if err != nil {
		return err
	}
	l.Run()
	return nil
}
