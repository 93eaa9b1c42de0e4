package mman

import "fmt"

// SlidingCursor is returned from Manager.MakeCursor(..., sliding=true) on a
// tiling manager (spec.md §4.7). It holds at most one region pin at a time
// — possibly none between accesses — and re-homes that pin transparently
// whenever an access lands outside the currently pinned region.
type SlidingCursor struct {
	cursorCommon
	core   *core
	alloc  allocateFunc
	region *Region // nil when unpinned
}

var _ Cursor = (*SlidingCursor)(nil)
var _ cursorHandle = (*SlidingCursor)(nil)

func newSlidingCursor(c *core, fi *FileInfo, ofs, size int64, alloc allocateFunc) *SlidingCursor {
	sc := &SlidingCursor{
		cursorCommon: cursorCommon{tok: newToken(), finfo: fi, ofs: ofs, size: size},
		core:         c,
		alloc:        alloc,
	}
	c.registerCursor(sc)
	armFinalizer(sc)
	return sc
}

// ensureRegion pins a region covering absolute offset x, re-homing from
// whatever region (if any) is currently pinned.
func (sc *SlidingCursor) ensureRegion(x int64) error {
	if sc.region != nil && sc.region.IncludesOfs(x) {
		return nil
	}
	if sc.region != nil {
		sc.core.unpin(sc.region, sc.tok)
		sc.region = nil
	}
	r, err := sc.alloc(sc.finfo, x, 1)
	if err != nil {
		return err
	}
	sc.core.pin(r, sc.tok)
	sc.region = r
	return nil
}

// resolveAbs turns a cursor-relative logical index (possibly negative,
// meaning "relative to file_size") into an absolute file offset, per
// spec.md §8's round-trip law `c[i] == file_bytes[i if i>=0 else
// file_size+i]`.
func (sc *SlidingCursor) resolveAbs(i int64) int64 {
	return resolveIndex(sc.finfo.size, i)
}

// At returns the single byte at logical index i.
func (sc *SlidingCursor) At(i int64) (byte, error) {
	if sc.closed {
		return 0, ErrClosed
	}
	x := sc.resolveAbs(i)
	if x < 0 || x >= sc.finfo.size {
		return 0, fmt.Errorf("%w: index %d for %q (size %d)", ErrOutOfRange, i, sc.finfo.path, sc.finfo.size)
	}
	if err := sc.ensureRegion(x); err != nil {
		return 0, err
	}
	return sc.region.slice(x, 1)[0], nil
}

// Slice returns the bytes for logical range [a, b) (a, b may be negative,
// resolved relative to file_size). A range wholly inside the pinned or a
// newly acquired region is returned zero-copy; a range straddling a region
// boundary acquires one region per window it spans and is copied into one
// contiguous buffer (spec.md §4.7).
func (sc *SlidingCursor) Slice(a, b int64) ([]byte, error) {
	if sc.closed {
		return nil, ErrClosed
	}
	start := sc.resolveAbs(a)
	end := sc.resolveAbs(b)
	if start < 0 || end > sc.finfo.size || start > end {
		return nil, fmt.Errorf("%w: slice [%d:%d) for %q (size %d)", ErrOutOfRange, a, b, sc.finfo.path, sc.finfo.size)
	}
	if start == end {
		return []byte{}, nil
	}

	if err := sc.ensureRegion(start); err != nil {
		return nil, err
	}
	if sc.region.IncludesOfsRange(start, end-start) {
		return sc.region.slice(start, end-start), nil
	}

	out := make([]byte, 0, end-start)
	cur := start
	for cur < end {
		if err := sc.ensureRegion(cur); err != nil {
			return nil, err
		}
		avail := sc.region.Offset() + sc.region.Size() - cur
		n := end - cur
		if avail < n {
			n = avail
		}
		out = append(out, sc.region.slice(cur, n)...)
		cur += n
	}
	return out, nil
}

// Close is a no-op by design (spec.md §4.7, §9): a sliding cursor releases
// its pin only when the manager closes. Source documents this behavior;
// see the design notes on why it is preserved rather than "fixed".
func (sc *SlidingCursor) Close() error {
	return nil
}

// forceClose is what Manager.Close() calls to actually unpin and release
// this cursor's bookkeeping, since Close() itself is intentionally inert.
func (sc *SlidingCursor) forceClose() {
	if sc.closed {
		return
	}
	sc.closed = true
	if sc.region != nil {
		sc.core.unpin(sc.region, sc.tok)
		sc.region = nil
	}
	disarmFinalizer(sc)
}
