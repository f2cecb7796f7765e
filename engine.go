package threadloop

import (
	"errors"
	"time"
)

// Standard errors.
var (
	// ErrBadNativeHint is returned when a native loop hint is not a loop
	// produced by the engine asked to bind it.
	ErrBadNativeHint = errors.New("threadloop: native loop hint was not created by this engine")

	// ErrEngineClosed is returned when a resource is requested from a native
	// loop that has already been freed.
	ErrEngineClosed = errors.New("threadloop: native loop has been freed")
)

// Callbacks are the per-iteration entry points a NativeLoop invokes on its
// owning goroutine. All three are optional; nil callbacks are skipped.
//
// Invocation order within one iteration is fixed: OnPre, then the blocking
// readiness wait (with OnWakeup invoked if the loop was woken), then expired
// timers, then OnPost.
type Callbacks struct {
	// OnWakeup is invoked after the readiness wait whenever the loop was
	// woken via NativeLoop.Wakeup.
	OnWakeup func()

	// OnPre is invoked at the start of every iteration, before the wait.
	OnPre func()

	// OnPost is invoked at the end of every iteration.
	OnPost func()
}

// Engine creates native loops. It is the seam between this coordination
// layer and the underlying I/O machinery; the built-in implementation only
// ever waits on its own wake primitive and timers, and hosts embedding this
// package inside another runtime supply their own.
type Engine interface {
	// CreateLoop returns a loop with cbs bound to it.
	//
	// A nil hint creates a fresh loop owned by the caller. A non-nil hint
	// must be a loop previously created by this same engine (or wrapped by
	// the host); the engine binds cbs onto it and returns it without taking
	// ownership. Engines return ErrBadNativeHint for foreign hints.
	CreateLoop(hint NativeLoop, cbs Callbacks) (NativeLoop, error)
}

// NativeLoop is the opaque handle to one native event loop.
//
// Run, Integrate, NewTimer, and Free are owning-goroutine operations.
// Wakeup and SetSilent may be called from any goroutine.
type NativeLoop interface {
	// Run blocks the calling goroutine in the poll-and-dispatch cycle.
	// It returns only once the loop has nothing keeping it alive (see
	// SetSilent) or has been freed.
	Run()

	// Integrate drives the loop passively, without blocking the caller.
	// Used to embed the loop inside a host runtime.
	Integrate()

	// Wakeup interrupts a blocking readiness wait. Safe from any goroutine.
	Wakeup()

	// NewTimer allocates an unarmed timer bound to this loop.
	NewTimer() (NativeTimer, error)

	// SetSilent suppresses the loop's liveness accounting: a silent loop
	// no longer counts its own wake primitive and timers as reasons to
	// keep running, so Run returns once no wake is pending.
	SetSilent(silent bool)

	// Free releases the loop's resources. Must not be called while Run is
	// blocked inside the loop.
	Free()
}

// NativeTimer is a fixed-interval timer bound to a native loop. Callbacks
// fire on the loop's owning goroutine.
type NativeTimer interface {
	// Set arms the timer to fire fn once after fireAfter, then every
	// repeat interval. A repeat of zero yields a single shot.
	Set(fireAfter, repeat time.Duration, fn func())

	// Close disarms and releases the timer.
	Close()
}

// DefaultEngine returns the built-in engine for this platform.
func DefaultEngine() Engine {
	return defaultEngine
}
