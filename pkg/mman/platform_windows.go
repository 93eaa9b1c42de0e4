//go:build windows

// Windows is not a supported platform for mman: region mapping leans on
// the unix mmap(2)/munmap(2)/msync(2) family. This stub mirrors the
// teacher's own Windows WAL stub shape (pkg/cache/wal/mmap_windows.go):
// opening and mapping fail with ErrUnsupported instead of compiling out the
// package's public surface; close, unmap and sync are no-ops, and the page
// size is reported as 4096.
package mman

import "fmt"

func openRead(path string) (*file, error) {
	return nil, fmt.Errorf("%w: file mapping on windows: %q", ErrUnsupported, path)
}

func closeFile(fh *file) error {
	return nil
}

func mapRegion(fh *file, ofs, size int64) (*mapping, error) {
	return nil, fmt.Errorf("%w: mmap on windows", ErrUnsupported)
}

func unmapRegion(m *mapping) error {
	return nil
}

func syncRegion(m *mapping) error {
	return nil
}

func pageSize() int {
	return 4096
}
