package threadloop

// loopData is the per-loop extension state. Its lifetime is identical to
// its owning Loop's, and every field except the defer queue and the clock
// snapshot is touched only on the loop goroutine.
type loopData struct {
	deferQueue DeferQueue

	preHandlers  handlerSet
	postHandlers handlerSet

	clock      clockCache
	clockTimer NativeTimer

	// corked is the outstanding write-buffer lock, owned by higher layers.
	// It must be nil again by the end of every iteration's post phase.
	corked any

	// silent mirrors the engine's liveness-accounting suppression flag.
	silent bool
}

// teardown releases the extension state: the clock timer first, then every
// queued callback and handler.
func (d *loopData) teardown() {
	if d.clockTimer != nil {
		d.clockTimer.Close()
		d.clockTimer = nil
	}
	d.deferQueue.reset()
	d.preHandlers.reset()
	d.postHandlers.reset()
	d.corked = nil
}
