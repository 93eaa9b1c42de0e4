//go:build unix

package mman

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// errMmapFailed marks an mmap(2) failure as retryable-by-eviction, per
// spec.md §4.5's "Failure modes specific to tiling": TilingManager's
// allocator catches this, evicts an LRU unused region, and retries before
// surfacing ErrOutOfMemory. GreedyManager's allocator does not retry and
// returns this error to the caller unchanged.
var errMmapFailed = errors.New("mman: mmap failed")

// openRead opens path read-only and captures its size. Matches spec.md
// §4.1's error taxonomy: not-found, not-regular, permission all surface as
// ErrIO (the taxonomy in §7 does not split them further).
func openRead(path string) (*file, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrIO, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat %q: %v", ErrIO, path, err)
	}

	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %q is not a regular file", ErrIO, path)
	}

	return &file{f: f, size: info.Size()}, nil
}

func closeFile(fh *file) error {
	if fh == nil || fh.f == nil {
		return nil
	}
	if err := fh.f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

// mapRegion creates a read-only shared mapping of [ofs, ofs+size) over fh.
// ofs must already be page-aligned; callers (region.go) guarantee this.
func mapRegion(fh *file, ofs, size int64) (*mapping, error) {
	data, err := unix.Mmap(int(fh.f.Fd()), ofs, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w at ofs=%d size=%d: %v", errMmapFailed, ofs, size, err)
	}
	return &mapping{data: data}, nil
}

func unmapRegion(m *mapping) error {
	if m == nil || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("%w: munmap: %v", ErrIO, err)
	}
	return nil
}

func syncRegion(m *mapping) error {
	if m == nil || m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func pageSize() int {
	return unix.Getpagesize()
}
