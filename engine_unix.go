//go:build linux || darwin

package threadloop

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fdEngine is the built-in engine on unix platforms. Its loops wait on a
// single wake file descriptor (eventfd on Linux, self-pipe on Darwin) via
// poll(2); this layer polls no sockets, so one fd is the whole interest set.
type fdEngine struct{}

var defaultEngine Engine = fdEngine{}

func (fdEngine) CreateLoop(hint NativeLoop, cbs Callbacks) (NativeLoop, error) {
	if hint != nil {
		l, ok := hint.(*fdLoop)
		if !ok {
			return nil, ErrBadNativeHint
		}
		l.cbs = cbs
		return l, nil
	}

	readFd, writeFd, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}

	return &fdLoop{
		cbs:       cbs,
		wakeRead:  readFd,
		wakeWrite: writeFd,
	}, nil
}

// fdLoop is one native loop on the fd engine.
type fdLoop struct {
	cbs Callbacks

	wakeRead  int
	wakeWrite int
	wakeBuf   [8]byte

	// wakePending deduplicates wake writes between drains.
	wakePending atomic.Uint32

	silent     atomic.Bool
	freed      atomic.Bool
	integrated atomic.Bool

	timers timerSet
}

// Run drives the poll-and-dispatch cycle until the loop is freed, or, for a
// silent loop, until an iteration ends with no wake pending.
func (l *fdLoop) Run() {
	for !l.freed.Load() {
		if l.cbs.OnPre != nil {
			l.cbs.OnPre()
		}

		if l.pollWake(l.pollTimeout()) {
			l.drainWake()
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

// Integrate drives the loop on a background goroutine. The built-in engine
// has no host runtime to attach to, so passive integration runs the same
// cycle without blocking the caller.
func (l *fdLoop) Integrate() {
	if l.freed.Load() {
		return
	}
	if l.integrated.CompareAndSwap(false, true) {
		go l.Run()
	}
}

// Wakeup interrupts a blocking poll. Safe from any goroutine; redundant
// wakes between drains collapse into one fd write.
func (l *fdLoop) Wakeup() {
	if l.freed.Load() {
		return
	}
	if !l.wakePending.CompareAndSwap(0, 1) {
		return
	}
	// Native endianness: the counter value is never interpreted.
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	if _, err := writeFD(l.wakeWrite, buf); err != nil {
		l.wakePending.Store(0)
	}
}

func (l *fdLoop) NewTimer() (NativeTimer, error) {
	if l.freed.Load() {
		return nil, ErrEngineClosed
	}
	return &engineTimer{set: &l.timers, wake: l.Wakeup}, nil
}

func (l *fdLoop) SetSilent(silent bool) {
	l.silent.Store(silent)
	if silent {
		l.Wakeup()
	}
}

// Free releases the wake fds and pending timers. Must not be called while
// Run is blocked inside the loop.
func (l *fdLoop) Free() {
	if l.freed.Swap(true) {
		return
	}
	_ = closeFD(l.wakeRead)
	if l.wakeWrite != l.wakeRead {
		_ = closeFD(l.wakeWrite)
	}
	l.timers.reset()
}

// pollTimeout computes how long the readiness wait may block, in
// milliseconds. Silent loops never block: they are one idle iteration away
// from returning.
func (l *fdLoop) pollTimeout() int {
	if l.silent.Load() {
		return 0
	}
	return l.timers.nextTimeoutMillis()
}

// pollWake blocks until the wake fd is readable or the timeout elapses.
// EINTR and poll errors surface as an eventless iteration.
func (l *fdLoop) pollWake(timeout int) bool {
	fds := [1]unix.PollFd{{Fd: int32(l.wakeRead), Events: unix.POLLIN}}
	n, err := unix.Poll(fds[:], timeout)
	if err != nil || n == 0 {
		return false
	}
	return fds[0].Revents&unix.POLLIN != 0
}

// drainWake empties the wake fd and clears the pending flag, so wakes
// signalled during the subsequent dispatch write the fd afresh.
func (l *fdLoop) drainWake() {
	for {
		if _, err := readFD(l.wakeRead, l.wakeBuf[:]); err != nil {
			break
		}
	}
	l.wakePending.Store(0)
}
