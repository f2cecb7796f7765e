package threadloop

import (
	"sync"
	"time"
)

// fakeEngine is a deterministic Engine for tests: iterations are driven
// manually via fakeNativeLoop.step, and timers fire only when told to.
type fakeEngine struct {
	createErr error
	timerErr  error
	loops     []*fakeNativeLoop
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{}
}

func (e *fakeEngine) CreateLoop(hint NativeLoop, cbs Callbacks) (NativeLoop, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	if hint != nil {
		l, ok := hint.(*fakeNativeLoop)
		if !ok {
			return nil, ErrBadNativeHint
		}
		l.cbs = cbs
		return l, nil
	}
	l := &fakeNativeLoop{
		cbs:      cbs,
		timerErr: e.timerErr,
	}
	e.loops = append(e.loops, l)
	return l, nil
}

type fakeNativeLoop struct {
	cbs      Callbacks
	timerErr error

	mu      sync.Mutex
	pending bool
	wakes   int
	silent  bool
	freed   bool
	timers  []*fakeTimer
}

func (l *fakeNativeLoop) Run() {
	for l.step() {
	}
}

func (l *fakeNativeLoop) Integrate() {
	go l.Run()
}

func (l *fakeNativeLoop) Wakeup() {
	l.mu.Lock()
	l.pending = true
	l.wakes++
	l.mu.Unlock()
}

func (l *fakeNativeLoop) NewTimer() (NativeTimer, error) {
	if l.timerErr != nil {
		return nil, l.timerErr
	}
	t := &fakeTimer{}
	l.mu.Lock()
	l.timers = append(l.timers, t)
	l.mu.Unlock()
	return t, nil
}

func (l *fakeNativeLoop) SetSilent(silent bool) {
	l.mu.Lock()
	l.silent = silent
	l.mu.Unlock()
}

func (l *fakeNativeLoop) Free() {
	l.mu.Lock()
	l.freed = true
	l.mu.Unlock()
}

// step runs one iteration: pre, wake drain if pending, post. Reports
// whether a subsequent iteration would run (false once silent and idle).
func (l *fakeNativeLoop) step() bool {
	if l.cbs.OnPre != nil {
		l.cbs.OnPre()
	}

	l.mu.Lock()
	woken := l.pending
	l.pending = false
	l.mu.Unlock()

	if woken && l.cbs.OnWakeup != nil {
		l.cbs.OnWakeup()
	}

	if l.cbs.OnPost != nil {
		l.cbs.OnPost()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return !(l.silent && !l.pending)
}

func (l *fakeNativeLoop) wakeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wakes
}

func (l *fakeNativeLoop) isFreed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.freed
}

type fakeTimer struct {
	mu        sync.Mutex
	fireAfter time.Duration
	repeat    time.Duration
	fn        func()
	closed    bool
}

func (t *fakeTimer) Set(fireAfter, repeat time.Duration, fn func()) {
	t.mu.Lock()
	t.fireAfter = fireAfter
	t.repeat = repeat
	t.fn = fn
	t.mu.Unlock()
}

func (t *fakeTimer) Close() {
	t.mu.Lock()
	t.closed = true
	t.fn = nil
	t.mu.Unlock()
}

func (t *fakeTimer) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// fire invokes the timer callback, standing in for the interval elapsing.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}
