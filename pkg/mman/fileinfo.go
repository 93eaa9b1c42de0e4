package mman

import (
	"fmt"
	"path/filepath"
)

// FileInfo is the manager's per-file record (spec.md §3, §4.1):
// canonical path, size captured at first open, and the open read-only
// descriptor. Size is immutable for the FileInfo's lifetime. Regions and
// cursors that reference a FileInfo are tracked by the owning manager's
// relation index, not by FileInfo itself — this keeps FileInfo a pure
// identity/size/descriptor record, matching its narrow share of
// responsibility in the component table.
type FileInfo struct {
	token token
	path  string // canonical
	size  int64
	fh    *file
}

// Path returns the canonical path this FileInfo was opened from.
func (fi *FileInfo) Path() string { return fi.path }

// Size returns the file size captured at first open.
func (fi *FileInfo) Size() int64 { return fi.size }

// openFileInfo canonicalizes path, opens it read-only and validates it per
// spec.md §4.1: not found, not a regular file, and empty (size 0, since a
// region of size 0 is invalid) all fail here before a FileInfo exists.
func openFileInfo(path string) (*FileInfo, error) {
	canonical, err := absPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrIO, path, err)
	}

	fh, err := openRead(canonical)
	if err != nil {
		return nil, err
	}

	if fh.size == 0 {
		_ = closeFile(fh)
		return nil, fmt.Errorf("%w: %q is empty", ErrIO, canonical)
	}

	return &FileInfo{
		token: newToken(),
		path:  canonical,
		size:  fh.size,
		fh:    fh,
	}, nil
}

func (fi *FileInfo) close() error {
	return closeFile(fi.fh)
}

// absPath canonicalizes a path to an absolute form so that two different
// relative spellings of the same file share one FileInfo.
func absPath(path string) (string, error) {
	return filepath.Abs(path)
}
