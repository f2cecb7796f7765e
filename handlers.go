package threadloop

// Handler is a per-iteration hook. Handlers run on the loop goroutine only,
// once per iteration, in registration order.
type Handler func(*Loop)

type handlerEntry struct {
	key any
	fn  Handler
}

// handlerSet is an insertion-ordered keyed mapping of handlers. It is not
// synchronized: mutation and iteration both belong on the loop goroutine.
//
// Iteration runs over a snapshot that is only rebuilt after a mutation, so
// adding or removing a handler from within a hook takes effect from the
// next iteration, never mid-pass.
type handlerSet struct {
	entries  []handlerEntry
	snapshot []Handler
}

// add registers fn under key. The first registration wins: if key already
// has a handler, the call reports false and the existing entry is kept.
func (s *handlerSet) add(key any, fn Handler) bool {
	for i := range s.entries {
		if s.entries[i].key == key {
			return false
		}
	}
	s.entries = append(s.entries, handlerEntry{key: key, fn: fn})
	s.snapshot = nil
	return true
}

// remove deletes the entry for key, preserving the order of the rest.
// Unknown keys are a no-op.
func (s *handlerSet) remove(key any) {
	for i := range s.entries {
		if s.entries[i].key == key {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			s.snapshot = nil
			return
		}
	}
}

// fns returns the handlers in insertion order. The returned slice is reused
// until the next mutation.
func (s *handlerSet) fns() []Handler {
	if s.snapshot == nil && len(s.entries) > 0 {
		s.snapshot = make([]Handler, len(s.entries))
		for i := range s.entries {
			s.snapshot[i] = s.entries[i].fn
		}
	}
	return s.snapshot
}

func (s *handlerSet) len() int {
	return len(s.entries)
}

func (s *handlerSet) reset() {
	s.entries = nil
	s.snapshot = nil
}
