package mman

import (
	"log/slog"

	"github.com/dittomap/mman/internal/logger"
)

// GreedyManager maps at most one region per file, covering the whole file
// (spec.md §4.4). It never tiles and has no memory budget beyond the sum of
// open file sizes — callers who know their files fit in address space pay
// no region-lookup cost per access.
type GreedyManager struct {
	c       *core
	regions map[token]*Region // fileinfo token -> its single region
}

var _ Manager = (*GreedyManager)(nil)

// NewGreedyManager creates a GreedyManager. log and met may be nil.
func NewGreedyManager(log *slog.Logger, met *metrics) *GreedyManager {
	return &GreedyManager{
		c:       newCore(0, 0, log, met),
		regions: make(map[token]*Region),
	}
}

// NewGreedyManagerFromConfig builds the manager's logger and, if
// cfg.EnableMetrics is set, its Prometheus gauges from cfg — the
// WindowSize/MaxMemorySize/MaxOpenHandles fields are ignored since a
// GreedyManager never tiles (spec.md §4.4).
func NewGreedyManagerFromConfig(cfg Config) *GreedyManager {
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	var met *metrics
	if cfg.EnableMetrics {
		met = newMetrics(nil, "greedy")
	}
	return NewGreedyManager(log, met)
}

func (g *GreedyManager) allocate(fi *FileInfo, ofs, size int64) (*Region, error) {
	if r, ok := g.regions[fi.token]; ok {
		return r, nil
	}
	r, err := newRegion(fi, 0, fi.size)
	if err != nil {
		return nil, err
	}
	g.c.rel.addRegion(fi, r)
	g.regions[fi.token] = r
	return r, nil
}

// MakeCursor implements Manager. GreedyManager rejects sliding=true with
// ErrUnsupported (spec.md §4.3, §4.4).
func (g *GreedyManager) MakeCursor(path string, offset, size int64, sliding bool) (Cursor, error) {
	if sliding {
		return nil, ErrUnsupported
	}

	fi, err := g.c.fileInfo(path)
	if err != nil {
		return nil, err
	}
	ofs, sz, err := g.c.resolveRange(fi, offset, size)
	if err != nil {
		return nil, err
	}
	r, err := g.allocate(fi, ofs, sz)
	if err != nil {
		return nil, err
	}
	return newFixedCursor(g.c, fi, ofs, sz, r, g.allocate), nil
}

// Collect implements Manager. A GreedyManager's single region per file is
// always considered "wanted" once created, so Collect only releases
// regions for files with zero live cursors.
func (g *GreedyManager) Collect() int {
	released := 0
	for fiTok, r := range g.regions {
		if r.clientCount != 0 {
			continue
		}
		var fi *FileInfo
		for _, cand := range g.c.files {
			if cand.token == fiTok {
				fi = cand
				break
			}
		}
		if fi == nil {
			continue
		}
		if err := g.c.evict(fi, r, false); err == nil {
			delete(g.regions, fiTok)
			released++
		}
	}
	return released
}

func (g *GreedyManager) Close() error {
	g.c.closeAll()
	g.regions = make(map[token]*Region)
	return nil
}

// enterScope and exitScope implement the unexported scoper interface so
// WithManager can nest re-entrantly over a GreedyManager (spec.md §4.3).
func (g *GreedyManager) enterScope()     { g.c.enterScope() }
func (g *GreedyManager) exitScope() bool { return g.c.exitScope() }

func (g *GreedyManager) NumOpenRegions() int     { return g.c.numOpenRegions() }
func (g *GreedyManager) NumUsedRegions() int     { return g.c.numUsedRegions() }
func (g *GreedyManager) NumOpenCursors() int     { return g.c.numOpenCursors() }
func (g *GreedyManager) MappedMemorySize() int64 { return g.c.mappedMemorySize() }
func (g *GreedyManager) MaxMemorySize() int64    { return 0 }
func (g *GreedyManager) MaxFileHandles() int     { return 0 }
