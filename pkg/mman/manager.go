// Package mman is a memory-map window manager: it exposes slices of
// on-disk files as zero-copy byte views ("cursors") while hiding the
// arithmetic of partitioning files into a bounded pool of OS-level memory
// mappings ("regions"), pinning regions while cursors reference them, and
// reclaiming them deterministically under an LRU discipline once they
// aren't.
//
// Managers are single-threaded by design (no method takes a lock, and none
// is safe for concurrent use) and never mutate mapped bytes — every
// mapping is PROT_READ.
package mman

import (
	"fmt"
	"log/slog"

	"github.com/dittomap/mman/internal/logger"
)

// Manager is the contract both GreedyManager and TilingManager satisfy
// (spec.md §4.3).
type Manager interface {
	// MakeCursor resolves path to a FileInfo (opening it on first
	// reference) and returns a cursor over [offset, offset+size). size ==
	// 0 means "to end of file". sliding requests a SlidingCursor; managers
	// that don't support tiling reject it with ErrUnsupported.
	MakeCursor(path string, offset, size int64, sliding bool) (Cursor, error)

	// Collect force-releases every region with a zero client count and
	// returns how many were released.
	Collect() int

	// Close releases every cursor and region this manager issued and
	// closes every FileInfo descriptor. Idempotent; never fails.
	Close() error

	NumOpenRegions() int
	NumUsedRegions() int
	NumOpenCursors() int
	MappedMemorySize() int64
	MaxMemorySize() int64
	MaxFileHandles() int
}

// cursorHandle is the weak back-reference a manager keeps to every cursor
// it issued, used only so Close() can force-release cursors the client
// never got around to closing (spec.md §5: "a cursor that outlives the
// manager is undefined behavior and MUST be prevented by closing all
// cursors at manager close").
type cursorHandle interface {
	cursorToken() token
	forceClose()
}

// allocateFunc is the policy hook that differs between GreedyManager and
// TilingManager: given a FileInfo and a requested logical range, produce a
// Region that covers at least the start of that range. Everything else —
// request validation, FileInfo interning, cursor construction, counters,
// Close/Collect — is shared in *core.
type allocateFunc func(fi *FileInfo, ofs, size int64) (*Region, error)

// core is the abstract manager machinery spec.md §4.3 describes, embedded
// by both GreedyManager and TilingManager.
type core struct {
	files map[string]*FileInfo // canonical path -> FileInfo

	rel *relation

	openCursors map[token]cursorHandle

	maxMemorySize  int64
	maxOpenHandles int

	seq uint64 // monotonic LRU clock, bumped on every region touch

	scopeDepth int
	closed     bool

	log *slog.Logger
	met *metrics
}

// enterScope and exitScope back WithManager's re-entrant nesting (spec.md
// §4.3: "close fires on the outermost exit"). exitScope reports whether
// this was the outermost exit.
func (c *core) enterScope() {
	c.scopeDepth++
}

func (c *core) exitScope() bool {
	if c.scopeDepth > 0 {
		c.scopeDepth--
	}
	return c.scopeDepth == 0
}

func newCore(maxMemorySize int64, maxOpenHandles int, log *slog.Logger, met *metrics) *core {
	return &core{
		files:          make(map[string]*FileInfo),
		rel:            newRelation(),
		openCursors:    make(map[token]cursorHandle),
		maxMemorySize:  maxMemorySize,
		maxOpenHandles: maxOpenHandles,
		log:            logger.OrDefault(log),
		met:            met,
	}
}

// fileInfo interns path: the first lookup opens the file, subsequent
// lookups reuse the FileInfo (spec.md §4.1).
func (c *core) fileInfo(path string) (*FileInfo, error) {
	if c.closed {
		return nil, ErrClosed
	}

	canonical, err := canonicalPath(path)
	if err == nil {
		if fi, ok := c.files[canonical]; ok {
			return fi, nil
		}
	}

	fi, err := openFileInfo(path)
	if err != nil {
		return nil, err
	}
	c.files[fi.path] = fi
	c.log.Debug("opened file", "path", fi.path, "size", fi.size)
	return fi, nil
}

// resolveRange implements spec.md §4.3's offset/size contract: size == 0
// means "to EOF"; offset >= size is always out-of-range; a non-zero size
// that would read past EOF is out-of-range (neither manager flavor
// supports partial fulfilment of an explicit size).
func (c *core) resolveRange(fi *FileInfo, offset, size int64) (int64, int64, error) {
	if offset < 0 || offset >= fi.size {
		return 0, 0, fmt.Errorf("%w: offset %d for %q (size %d)", ErrOutOfRange, offset, fi.path, fi.size)
	}
	if size == 0 {
		return offset, fi.size - offset, nil
	}
	if offset+size > fi.size {
		return 0, 0, fmt.Errorf("%w: offset %d + size %d exceeds %q size %d", ErrOutOfRange, offset, size, fi.path, fi.size)
	}
	return offset, size, nil
}

// pin attaches cursor token tok to region r: bumps client_count, records
// the attachment in the relation index, and advances the LRU clock.
func (c *core) pin(r *Region, tok token) {
	r.clientCount++
	c.rel.attachCursor(r, tok)
	c.seq++
	r.lastAccess = c.seq
	c.refreshMetrics()
}

// unpin reverses pin. When the count reaches zero the region becomes
// eligible for eviction, and its LRU clock is refreshed (spec.md §4.5:
// "last access is updated ... each time its client_count drops to zero").
func (c *core) unpin(r *Region, tok token) {
	c.rel.detachCursor(r, tok)
	if r.clientCount > 0 {
		r.clientCount--
	}
	if r.clientCount == 0 {
		c.seq++
		r.lastAccess = c.seq
	}
	c.refreshMetrics()
}

// evict unmaps r and drops it from every index. Caller must ensure
// r.clientCount == 0 (spec.md §3 invariant) unless force is set, which
// Close() uses to tear down pinned regions too.
func (c *core) evict(fi *FileInfo, r *Region, force bool) error {
	if !force && r.clientCount > 0 {
		return fmt.Errorf("mman: cannot evict region with client_count=%d", r.clientCount)
	}
	c.rel.removeRegion(fi, r)
	if err := r.unmap(); err != nil {
		c.log.Warn("unmap failed during eviction", "path", fi.path, "offset", r.ofs, "err", err)
		return err
	}
	c.met.recordEviction()
	c.refreshMetrics()
	return nil
}

// refreshMetrics pushes the current counters to c.met, a no-op when metrics
// are disabled (c.met == nil, handled by metrics.go's nil-receiver methods).
func (c *core) refreshMetrics() {
	c.met.setGauges(c.numOpenRegions(), c.numUsedRegions(), c.numOpenCursors(), c.mappedMemorySize())
}

func (c *core) registerCursor(h cursorHandle) {
	c.openCursors[h.cursorToken()] = h
	c.refreshMetrics()
}

func (c *core) unregisterCursor(h cursorHandle) {
	delete(c.openCursors, h.cursorToken())
	c.refreshMetrics()
}

// collectUnused evicts every region with client_count == 0 across every
// file and returns how many were released (spec.md §4.3 Collect()).
func (c *core) collectUnused() int {
	released := 0
	for _, fi := range c.files {
		for _, r := range c.rel.regionsOf(fi) {
			if r.clientCount == 0 {
				if err := c.evict(fi, r, false); err == nil {
					released++
				}
			}
		}
	}
	return released
}

// closeAll force-closes every open cursor, unmaps every region regardless
// of client_count, and closes every FileInfo descriptor. Best-effort:
// unmap/close errors are logged, never returned, per spec.md §7 ("closing
// a manager never fails").
func (c *core) closeAll() {
	if c.closed {
		return
	}
	c.closed = true

	for _, h := range c.openCursors {
		h.forceClose()
	}
	c.openCursors = make(map[token]cursorHandle)

	for _, fi := range c.files {
		for _, r := range c.rel.regionsOf(fi) {
			_ = c.evict(fi, r, true)
		}
		if err := fi.close(); err != nil {
			c.log.Warn("close file failed", "path", fi.path, "err", err)
		}
	}
	c.files = make(map[string]*FileInfo)
}

func (c *core) numOpenRegions() int { return len(c.rel.byToken) }

func (c *core) numUsedRegions() int {
	n := 0
	for _, r := range c.rel.byToken {
		if r.Used() {
			n++
		}
	}
	return n
}

func (c *core) numOpenCursors() int { return len(c.openCursors) }

func (c *core) mappedMemorySize() int64 {
	var total int64
	for _, r := range c.rel.byToken {
		total += r.size
	}
	return total
}

// canonicalPath mirrors fileinfo.go's canonicalization so the registry
// lookup uses the same key openFileInfo stores a FileInfo under. Only
// successful opens are registered: a path whose open failed is opened
// again on its next lookup.
func canonicalPath(path string) (string, error) {
	return absPath(path)
}
