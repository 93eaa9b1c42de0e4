package mman

import "fmt"

// FixedCursor is returned from Manager.MakeCursor(..., sliding=false). It
// holds exactly one region pin for its entire open lifetime (spec.md §4.6).
type FixedCursor struct {
	cursorCommon
	region *Region
	core   *core
	alloc  allocateFunc
}

var _ Cursor = (*FixedCursor)(nil)
var _ cursorHandle = (*FixedCursor)(nil)

// newFixedCursor pins r on behalf of a freshly minted cursor token and
// returns the cursor. ofs/size are the caller's logical range, not r's
// rounded mmap range.
func newFixedCursor(c *core, fi *FileInfo, ofs, size int64, r *Region, alloc allocateFunc) *FixedCursor {
	tok := newToken()
	c.pin(r, tok)

	fc := &FixedCursor{
		cursorCommon: cursorCommon{tok: tok, finfo: fi, ofs: ofs, size: size},
		region:       r,
		core:         c,
		alloc:        alloc,
	}
	c.registerCursor(fc)
	armFinalizer(fc)
	return fc
}

// Buffer returns a view over this cursor's logical range, truncated to the
// pinned region's boundary if the range extends past it (spec.md §4.6):
// the returned slice spans [ofs, ofs+min(size, region end - ofs)).
// Callers that receive a truncated view are expected to chain NextCursor.
func (fc *FixedCursor) Buffer() ([]byte, error) {
	if fc.closed {
		return nil, ErrClosed
	}
	avail := fc.region.Offset() + fc.region.Size() - fc.ofs
	n := fc.size
	if avail < n {
		n = avail
	}
	return fc.region.slice(fc.ofs, n), nil
}

// Release decrements the pinned region's client_count and closes the
// cursor. Unlike Close, a second call fails with ErrAlreadyReleased
// (spec.md §4.6: "release() is single-shot").
func (fc *FixedCursor) Release() error {
	if fc.closed {
		return ErrAlreadyReleased
	}
	fc.closeLocked()
	return nil
}

// Close is Release's idempotent counterpart (spec.md §4.6): a second call
// is a no-op rather than an error, matching Manager.Close's close()
// contract and making FixedCursor safe to use with WithCursor's deferred
// Close.
func (fc *FixedCursor) Close() error {
	if fc.closed {
		return nil
	}
	fc.closeLocked()
	return nil
}

func (fc *FixedCursor) closeLocked() {
	fc.closed = true
	fc.core.unpin(fc.region, fc.tok)
	fc.core.unregisterCursor(fc)
	fc.region = nil
	disarmFinalizer(fc)
}

// forceClose implements cursorHandle for Manager.Close's best-effort
// teardown; it never returns already-released even if already closed.
func (fc *FixedCursor) forceClose() {
	if fc.closed {
		return
	}
	fc.closeLocked()
}

// MakeCursor closes this cursor and requests a new one over [offset,
// offset+size) on the same FileInfo (spec.md §4.6).
func (fc *FixedCursor) MakeCursor(offset, size int64) (*FixedCursor, error) {
	fi := fc.finfo
	alloc := fc.alloc
	core := fc.core

	if err := fc.Close(); err != nil {
		return nil, err
	}

	ofs, sz, err := core.resolveRange(fi, offset, size)
	if err != nil {
		return nil, err
	}
	r, err := alloc(fi, ofs, sz)
	if err != nil {
		return nil, err
	}
	return newFixedCursor(core, fi, ofs, sz, r, alloc), nil
}

// NextCursor is MakeCursor(ofs+size, size) (spec.md §4.6): continuing a
// fixed-window read past the current cursor's range. The last window's size
// is clamped to the bytes left before EOF, so a chain of NextCursor calls
// covers the whole file. Fails with ErrOutOfRange once the next window
// would start at or beyond EOF.
func (fc *FixedCursor) NextCursor() (*FixedCursor, error) {
	next := fc.ofs + fc.size
	if next >= fc.finfo.size {
		return nil, fmt.Errorf("%w: next_cursor at %d >= size %d", ErrOutOfRange, next, fc.finfo.size)
	}
	size := fc.size
	if rest := fc.finfo.size - next; size > rest {
		size = rest
	}
	return fc.MakeCursor(next, size)
}
