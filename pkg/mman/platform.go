package mman

import "os"

// file is the platform handle returned by openRead: an opened, read-only
// file descriptor plus the size captured at open time (spec.md §3:
// FileInfo size is immutable for its lifetime, captured at first open).
type file struct {
	f    *os.File
	size int64
}

// mapping is the platform handle for one live OS memory mapping.
type mapping struct {
	data []byte
}

// The four platform services spec.md §6 requires: open_read, mmap,
// munmap, page_size (an msync wrapper, syncRegion, is defined too; nothing
// in the package calls it). Implementations live in platform_unix.go and
// platform_windows.go, selected by build tag.
