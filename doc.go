// Package threadloop provides per-goroutine event-loop lifecycle and
// cross-goroutine coordination on top of a pluggable native I/O engine.
//
// The package does not poll sockets or parse any protocol. It answers three
// narrower questions: how exactly one loop per goroutine is lazily created,
// reused, and torn down ([Get], [Loop.Free]); how work produced on a
// foreign goroutine executes exactly once on the loop's own goroutine
// ([Loop.Defer]); and how per-iteration behavior is layered onto an opaque
// native loop handle (pre/post handlers, the cached clock, and the
// cork-release invariant).
//
// # Architecture
//
// A [Loop] wraps a [NativeLoop] created by an [Engine]. The built-in engine
// waits on an eventfd (Linux) or self-pipe (Darwin) and drives fixed
// interval timers; hosts embedding the package inside another runtime
// supply their own engine and lend out native handles via [WithNativeLoop]
// (borrowed loops, never freed by this layer).
//
// Each iteration the engine invokes, in order: the pre handlers, the
// blocking readiness wait with I/O dispatch (opaque to this package), the
// wake callback that drains the defer queue until it is observably empty,
// and the post handlers, after which the loop verifies that no corked write
// buffer is still held. Holding the cork across an iteration is an
// unrecoverable contract violation: the process terminates with a
// structured diagnostic rather than risk interleaving buffered output.
//
// # Thread Safety
//
// Exactly one goroutine drives a given Loop; independent loops on separate
// goroutines share no mutable state. [Loop.Defer] is the only operation
// safe from a foreign goroutine: it enqueues onto an internally
// synchronized MPSC queue and signals the engine's wake primitive. Handler
// registration, corking, and teardown belong on the loop's own goroutine.
//
// # Usage
//
//	loop, err := threadloop.Get()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer loop.Free()
//
//	loop.AddPostHandler(key, func(l *threadloop.Loop) {
//		// runs once per iteration, after I/O dispatch
//	})
//
//	go producer(loop) // calls loop.Defer(...) from its own goroutine
//
//	loop.Run()
package threadloop
