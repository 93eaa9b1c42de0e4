package mman

import "runtime"

// armFinalizer attaches a runtime.SetFinalizer safety net to c so a cursor
// a caller forgets to Close() is still released when it's collected,
// instead of pinning its region forever. The finalizer calls forceClose
// rather than Close: SlidingCursor.Close is an intentional no-op (the
// manager owns its release), but a finalizer fires precisely because no
// manager-mediated release is coming, so it must go through the same
// internal path Manager.Close uses. Close()/closeLocked disarm the
// finalizer once they've done the real release work, so a finalizer
// running after an explicit Close() is always a no-op via forceClose's
// own closed guard.
//
// This is the safety net, not the primary release path: callers are still
// expected to call Close() (spec.md §4.6/§4.7), and GC timing makes the
// finalizer an unbounded-latency fallback, never a substitute.
func armFinalizer(c cursorHandle) {
	runtime.SetFinalizer(c, func(c cursorHandle) {
		c.forceClose()
	})
}

func disarmFinalizer(c cursorHandle) {
	runtime.SetFinalizer(c, nil)
}

// WithCursor opens a cursor over path via m, runs fn, and releases the
// cursor before returning — including when fn panics. It is the scoped
// acquisition pattern spec.md §7 recommends over manual Close() bookkeeping.
func WithCursor(m Manager, path string, offset, size int64, fn func(Cursor) error) error {
	c, err := m.MakeCursor(path, offset, size, false)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// WithSlidingCursor is WithCursor's sliding-window counterpart. Its
// deferred Close is a no-op for a SlidingCursor, so the cursor stays open
// and keeps any region pin until the manager closes.
func WithSlidingCursor(m Manager, path string, offset, size int64, fn func(Cursor) error) error {
	c, err := m.MakeCursor(path, offset, size, true)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// scoper is satisfied by GreedyManager and TilingManager; it backs
// WithManager's re-entrant nesting without widening the public Manager
// interface with scope bookkeeping every implementation would otherwise
// have to expose.
type scoper interface {
	enterScope()
	exitScope() bool
}

// WithManager runs fn against m and closes m once fn returns — including
// when fn panics — unless this call is nested inside another WithManager
// (or WithManager-derived) scope over the same manager, in which case
// closing is deferred to the outermost exit (spec.md §4.3: "Re-entrant
// scope entries nest; close fires on the outermost exit").
//
// Nesting is tracked on m itself, so any two calls sharing the same
// manager value nest correctly regardless of call-stack shape; a manager
// type that doesn't implement the internal scoper bookkeeping (none of
// the package's own managers fall in this case) simply closes on every
// exit, same as an unnested call.
func WithManager(m Manager, fn func(Manager) error) error {
	s, ok := m.(scoper)
	if !ok {
		defer m.Close()
		return fn(m)
	}

	s.enterScope()
	defer func() {
		if s.exitScope() {
			_ = m.Close()
		}
	}()
	return fn(m)
}
