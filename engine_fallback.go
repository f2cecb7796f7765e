//go:build !linux && !darwin

package threadloop

import (
	"sync/atomic"
	"time"
)

// chanEngine is the built-in engine on platforms without a wake fd: the
// wake primitive is a buffered channel and the readiness wait is a select.
// The iteration skeleton is identical to the fd engine's.
type chanEngine struct{}

var defaultEngine Engine = chanEngine{}

func (chanEngine) CreateLoop(hint NativeLoop, cbs Callbacks) (NativeLoop, error) {
	if hint != nil {
		l, ok := hint.(*chanLoop)
		if !ok {
			return nil, ErrBadNativeHint
		}
		l.cbs = cbs
		return l, nil
	}
	return &chanLoop{
		cbs:  cbs,
		wake: make(chan struct{}, 1),
	}, nil
}

type chanLoop struct {
	cbs  Callbacks
	wake chan struct{}

	wakePending atomic.Uint32

	silent     atomic.Bool
	freed      atomic.Bool
	integrated atomic.Bool

	timers timerSet
}

func (l *chanLoop) Run() {
	for !l.freed.Load() {
		if l.cbs.OnPre != nil {
			l.cbs.OnPre()
		}

		if l.waitWake(l.pollTimeout()) {
			l.wakePending.Store(0)
			if l.cbs.OnWakeup != nil {
				l.cbs.OnWakeup()
			}
		}

		l.timers.fire()

		if l.cbs.OnPost != nil {
			l.cbs.OnPost()
		}

		if l.silent.Load() && l.wakePending.Load() == 0 {
			return
		}
	}
}

func (l *chanLoop) Integrate() {
	if l.freed.Load() {
		return
	}
	if l.integrated.CompareAndSwap(false, true) {
		go l.Run()
	}
}

func (l *chanLoop) Wakeup() {
	if l.freed.Load() {
		return
	}
	if !l.wakePending.CompareAndSwap(0, 1) {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *chanLoop) NewTimer() (NativeTimer, error) {
	if l.freed.Load() {
		return nil, ErrEngineClosed
	}
	return &engineTimer{set: &l.timers, wake: l.Wakeup}, nil
}

func (l *chanLoop) SetSilent(silent bool) {
	l.silent.Store(silent)
	if silent {
		l.Wakeup()
	}
}

func (l *chanLoop) Free() {
	if l.freed.Swap(true) {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
	l.timers.reset()
}

func (l *chanLoop) pollTimeout() int {
	if l.silent.Load() {
		return 0
	}
	return l.timers.nextTimeoutMillis()
}

// waitWake blocks until a wake arrives or the timeout elapses. A timeout of
// -1 blocks indefinitely; 0 drains without blocking.
func (l *chanLoop) waitWake(timeout int) bool {
	switch {
	case timeout == 0:
		select {
		case <-l.wake:
			return true
		default:
			return false
		}
	case timeout < 0:
		<-l.wake
		return true
	default:
		t := time.NewTimer(time.Duration(timeout) * time.Millisecond)
		defer t.Stop()
		select {
		case <-l.wake:
			return true
		case <-t.C:
			return false
		}
	}
}
