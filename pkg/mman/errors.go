package mman

import "errors"

// Sentinel errors for the taxonomy of kinds a caller can act on with
// errors.Is. Call sites wrap these with fmt.Errorf("...: %w", ...) to add
// context (path, offset, size) without losing the sentinel identity.
var (
	// ErrOutOfRange is returned when an offset lies at or beyond EOF, or
	// when next_cursor() would start past EOF.
	ErrOutOfRange = errors.New("mman: offset out of range")

	// ErrUnsupported is returned when a sliding cursor is requested from a
	// manager that does not support tiling (GreedyManager).
	ErrUnsupported = errors.New("mman: operation not supported by this manager")

	// ErrOutOfMemory is returned by TilingManager when eviction retries are
	// exhausted or a configured budget cannot be satisfied.
	ErrOutOfMemory = errors.New("mman: out of mapped memory")

	// ErrAlreadyReleased is returned by FixedCursor.Release when called a
	// second time.
	ErrAlreadyReleased = errors.New("mman: cursor already released")

	// ErrClosed is returned for any operation against a closed cursor or a
	// closed manager.
	ErrClosed = errors.New("mman: use of closed resource")

	// ErrIO wraps a non-retryable file-open or mmap system call failure.
	ErrIO = errors.New("mman: io error")
)
