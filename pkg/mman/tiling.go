package mman

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/dittomap/mman/internal/logger"
)

// defaultWindowSize is the tiling manager's target region size absent an
// explicit Config.WindowSize: 64 MiB on 64-bit platforms and 16 MiB on
// 32-bit ones (the shift below is 2 when uintptr is 8 bytes, 0 when it is
// 4). 64 MiB sits in spec.md §6's documented 32 MiB - 1 GiB range for
// 64-bit platforms: large enough that sequential scans rarely cross a
// region boundary, small enough that a handful of concurrently pinned
// regions stays well under typical address-space and RSS budgets.
const defaultWindowSize = (16 << 20) << ((unsafe.Sizeof(uintptr(0)) - 4) / 2)

// defaultMaxMemorySize is a large platform multiple of defaultWindowSize
// (spec.md §4.5), chosen so a default-configured manager behaves
// effectively unbounded until a caller opts into a tighter budget.
const defaultMaxMemorySize = 64 * defaultWindowSize

// maxMmapRetries bounds the eviction-and-retry loop spec.md §4.5 requires
// around an OS mmap failure before surfacing ErrOutOfMemory.
const maxMmapRetries = 4

// TilingManager partitions files into a bounded pool of window_size-ish
// regions, reusing a region that already covers a request and otherwise
// allocating a new one — evicting least-recently-used unused regions under
// memory or handle pressure (spec.md §4.5).
type TilingManager struct {
	c          *core
	windowSize int64
}

var _ Manager = (*TilingManager)(nil)

// NewTilingManager creates a TilingManager from cfg (zero value ==
// DefaultConfig()). log and met may be nil.
func NewTilingManager(cfg Config, log *slog.Logger, met *metrics) *TilingManager {
	cfg = cfg.withDefaults()
	return &TilingManager{
		c:          newCore(cfg.MaxMemorySize.Int64(), cfg.MaxOpenHandles, log, met),
		windowSize: cfg.WindowSize.Int64(),
	}
}

// NewTilingManagerFromConfig is the ergonomic entry point: it builds the
// manager's logger and, if cfg.EnableMetrics is set, its Prometheus gauges
// from cfg itself, instead of requiring the caller to wire those up
// separately via NewTilingManager.
func NewTilingManagerFromConfig(cfg Config) *TilingManager {
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	var met *metrics
	if cfg.EnableMetrics {
		met = newMetrics(nil, "tiling")
	}
	return NewTilingManager(cfg, log, met)
}

// allocate implements spec.md §4.5's allocation algorithm.
func (t *TilingManager) allocate(fi *FileInfo, o, n int64) (*Region, error) {
	if o < 0 || o >= fi.size {
		return nil, fmt.Errorf("%w: offset %d >= size %d for %q", ErrOutOfRange, o, fi.size, fi.path)
	}

	// Step 1: reuse an existing region covering o.
	for _, r := range t.c.rel.regionsOf(fi) {
		if r.IncludesOfs(o) {
			return r, nil
		}
	}

	// Step 2: candidate origin/size, with the swallow-the-tail heuristic.
	// origin is rounded down to the page boundary, which can fall an
	// arbitrary distance before o when windowSize is smaller than the
	// platform page size; size must therefore be grown to at least cover
	// [o, o+n) before windowSize is applied as a floor, or the candidate
	// could end before o and the reuse check on the next call would never
	// find it (region.go:slice requires the caller already guarantee
	// coverage, so this is computed up front rather than checked after).
	page := int64(pageSize())
	origin := (o / page) * page

	needed := (o - origin) + n
	if needed < 1 {
		needed = 1
	}
	size := t.windowSize
	if size < needed {
		size = needed
	}
	if remaining := fi.size - origin; size > remaining {
		size = remaining
	}
	if tail := fi.size - (origin + size); tail > 0 && tail <= t.windowSize/2 {
		size = fi.size - origin
	}

	var region *Region
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxMmapRetries; attempt++ {
		attempts++
		if err := t.makeRoom(size); err != nil {
			return nil, err
		}

		r, err := newRegion(fi, origin, size)
		if err == nil {
			region = r
			break
		}
		lastErr = err
		if !t.evictOneUnused() {
			break
		}
	}
	if region == nil {
		t.c.met.recordOutOfMemory()
		return nil, fmt.Errorf("%w: mmap failed after %d attempts: %v", ErrOutOfMemory, attempts, lastErr)
	}
	if !region.IncludesOfs(o) {
		return nil, fmt.Errorf("mman: internal error: allocated region [%d,+%d) does not cover requested offset %d", region.Offset(), region.Size(), o)
	}

	t.c.rel.addRegion(fi, region)
	return region, nil
}

// makeRoom evicts least-recently-used unused regions until adding a region
// of size addSize would no longer exceed either budget, or fails with
// ErrOutOfMemory if no further eviction is possible (spec.md §4.5 step 3).
func (t *TilingManager) makeRoom(addSize int64) error {
	for t.exceedsBudget(addSize) {
		if !t.evictOneUnused() {
			t.c.met.recordOutOfMemory()
			return fmt.Errorf("%w: no unused region to evict", ErrOutOfMemory)
		}
	}
	return nil
}

func (t *TilingManager) exceedsBudget(addSize int64) bool {
	if t.c.maxMemorySize > 0 && t.c.mappedMemorySize()+addSize > t.c.maxMemorySize {
		return true
	}
	if t.c.maxOpenHandles > 0 && t.c.numOpenRegions()+1 > t.c.maxOpenHandles {
		return true
	}
	return false
}

// evictOneUnused evicts the unused region with the lowest lastAccess
// across every file, returning false if none exists.
func (t *TilingManager) evictOneUnused() bool {
	var victimFI *FileInfo
	var victim *Region

	for _, fi := range t.c.files {
		for _, r := range t.c.rel.regionsOf(fi) {
			if r.clientCount != 0 {
				continue
			}
			if victim == nil || r.lastAccess < victim.lastAccess {
				victim = r
				victimFI = fi
			}
		}
	}
	if victim == nil {
		return false
	}
	return t.c.evict(victimFI, victim, false) == nil
}

// MakeCursor implements Manager.
func (t *TilingManager) MakeCursor(path string, offset, size int64, sliding bool) (Cursor, error) {
	fi, err := t.c.fileInfo(path)
	if err != nil {
		return nil, err
	}
	ofs, sz, err := t.c.resolveRange(fi, offset, size)
	if err != nil {
		return nil, err
	}

	if sliding {
		return newSlidingCursor(t.c, fi, ofs, sz, t.allocate), nil
	}

	r, err := t.allocate(fi, ofs, sz)
	if err != nil {
		return nil, err
	}
	return newFixedCursor(t.c, fi, ofs, sz, r, t.allocate), nil
}

// Collect implements Manager.
func (t *TilingManager) Collect() int {
	return t.c.collectUnused()
}

func (t *TilingManager) Close() error {
	t.c.closeAll()
	return nil
}

// enterScope and exitScope implement the unexported scoper interface so
// WithManager can nest re-entrantly over a TilingManager (spec.md §4.3).
func (t *TilingManager) enterScope()     { t.c.enterScope() }
func (t *TilingManager) exitScope() bool { return t.c.exitScope() }

func (t *TilingManager) NumOpenRegions() int     { return t.c.numOpenRegions() }
func (t *TilingManager) NumUsedRegions() int     { return t.c.numUsedRegions() }
func (t *TilingManager) NumOpenCursors() int     { return t.c.numOpenCursors() }
func (t *TilingManager) MappedMemorySize() int64 { return t.c.mappedMemorySize() }
func (t *TilingManager) MaxMemorySize() int64    { return t.c.maxMemorySize }
func (t *TilingManager) MaxFileHandles() int     { return t.c.maxOpenHandles }
