package mman

import "fmt"

// Region is an immutable handle (save for clientCount and lastAccess)
// wrapping one OS memory mapping over [ofs, ofs+size) of one FileInfo
// (spec.md §3, §4.2). ofs is always rounded down to the page size and
// size expanded to cover the originally requested range — cursors quote
// the caller's logical (offset, size) themselves and translate against
// these rounded region bounds; Region never sees the unrounded request.
type Region struct {
	token       token
	finfo       *FileInfo
	ofs         int64
	size        int64
	mapping     *mapping
	clientCount int

	// lastAccess is a manager-scoped monotonic sequence number, not a wall
	// clock: spec.md §5 only requires LRU order to be "monotone within
	// program order", and a counter keeps Collect()/eviction tests
	// deterministic instead of racing the OS clock's resolution.
	lastAccess uint64
}

// newRegion rounds ofs down to the page boundary, expands size to cover
// the original [ofs, ofs+size) request, clamps to FileInfo.size, and
// creates the backing mmap. Returns ErrOutOfRange if ofs is at or beyond
// EOF.
func newRegion(finfo *FileInfo, ofs, size int64) (*Region, error) {
	if ofs < 0 || ofs >= finfo.size {
		return nil, fmt.Errorf("%w: offset %d >= size %d for %q", ErrOutOfRange, ofs, finfo.size, finfo.path)
	}
	if size <= 0 {
		return nil, fmt.Errorf("mman: region size must be > 0, got %d", size)
	}

	page := int64(pageSize())
	aligned := (ofs / page) * page
	expanded := size + (ofs - aligned)

	if aligned+expanded > finfo.size {
		expanded = finfo.size - aligned
	}

	m, err := mapRegion(finfo.fh, aligned, expanded)
	if err != nil {
		return nil, err
	}

	return &Region{
		token:   newToken(),
		finfo:   finfo,
		ofs:     aligned,
		size:    expanded,
		mapping: m,
	}, nil
}

// Offset returns the region's page-aligned start offset within its file.
func (r *Region) Offset() int64 { return r.ofs }

// Size returns the region's mapped size in bytes.
func (r *Region) Size() int64 { return r.size }

// ClientCount returns the number of cursors currently pinning this region.
func (r *Region) ClientCount() int { return r.clientCount }

// Used reports whether any cursor currently pins this region.
func (r *Region) Used() bool { return r.clientCount > 0 }

// IncludesOfs reports whether absolute file offset x falls within this
// region's mapped range.
func (r *Region) IncludesOfs(x int64) bool {
	return r.ofs <= x && x < r.ofs+r.size
}

// IncludesOfsRange reports whether [x, x+n) falls entirely within this
// region's mapped range.
func (r *Region) IncludesOfsRange(x, n int64) bool {
	return r.ofs <= x && x+n <= r.ofs+r.size
}

// slice returns the mapped bytes for the absolute range [x, x+n), which
// must be wholly contained (callers check IncludesOfsRange first).
func (r *Region) slice(x, n int64) []byte {
	start := x - r.ofs
	return r.mapping.data[start : start+n]
}

func (r *Region) unmap() error {
	return unmapRegion(r.mapping)
}
