// Package hierarchy models the caches of every core of a machine and renders
// them into checkpoints.
//
// Each core owns a Hierarchy made of a private cache, which sees every access
// of the core, and a shared shadow cache, which only sees the lines the
// private cache gives up. The shadow cache approximates the part of the shared
// cache used by the core.
package hierarchy

import (
	"sync/atomic"

	"github.com/sarchlab/cachewarm/mem/tscache"
)

// Stats counts what happened in the hierarchy of a core.
type Stats struct {
	Accesses   uint64 `json:"accesses" gauge:"cachewarm_accesses" gauge_help:"Accesses replayed"`
	Hits       uint64 `json:"hits" gauge:"cachewarm_hits" gauge_help:"Private cache hits"`
	Misses     uint64 `json:"misses" gauge:"cachewarm_misses" gauge_help:"Private cache misses"`
	Evictions  uint64 `json:"evictions" gauge:"cachewarm_evictions" gauge_help:"Clean lines moved to the shadow cache"`
	WriteBacks uint64 `json:"write_backs" gauge:"cachewarm_write_backs" gauge_help:"Dirty lines moved to the shadow cache"`
	ShadowHits uint64 `json:"shadow_hits" gauge:"cachewarm_shadow_hits" gauge_help:"Private misses found in the shadow cache"`

	// WarmedSets counts the private sets that have been filled completely.
	WarmedSets  uint64 `json:"warmed_sets" gauge:"cachewarm_warmed_sets" gauge_help:"Private sets filled completely"`
	FullyWarmed bool   `json:"fully_warmed"`
}

// HitRate returns the fraction of accesses that hit the private cache.
func (s Stats) HitRate() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Accesses)
}

type counters struct {
	accesses   atomic.Uint64
	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	writeBacks atomic.Uint64
	shadowHits atomic.Uint64
	warmedSets atomic.Uint64
}

// A Hierarchy is the cache hierarchy of a single core. It is not safe for
// concurrent use, only the worker that claimed it may access it.
type Hierarchy struct {
	coreID       int
	log2LineSize uint

	private *tscache.Cache
	shared  *tscache.Cache

	counters counters
}

// CoreID returns the core that owns the hierarchy.
func (h *Hierarchy) CoreID() int {
	return h.coreID
}

// Private returns the private cache.
func (h *Hierarchy) Private() *tscache.Cache {
	return h.private
}

// Shared returns the shared shadow cache.
func (h *Hierarchy) Shared() *tscache.Cache {
	return h.shared
}

// AccessMemory records an access to a physical address.
func (h *Hierarchy) AccessMemory(
	ts, paddr uint64,
	isInstruction, isWrite bool,
) {
	h.AccessBlock(ts, paddr>>h.log2LineSize, isInstruction, isWrite)
}

// AccessBlock records an access to a cache block.
func (h *Hierarchy) AccessBlock(
	ts, blockID uint64,
	isInstruction, isWrite bool,
) {
	h.counters.accesses.Add(1)

	res := h.private.Record(blockID, ts, isInstruction, isWrite)
	h.counters.warmedSets.Store(uint64(h.private.WarmedSets()))

	switch res.Kind {
	case tscache.Hit:
		h.counters.hits.Add(1)
	case tscache.Miss:
		h.counters.misses.Add(1)

		if h.shared.Peek(blockID, ts, isInstruction, isWrite) {
			h.counters.shadowHits.Add(1)
		}
	case tscache.MissWithEviction:
		h.counters.misses.Add(1)
		h.counters.evictions.Add(1)
		h.shared.Record(res.EvictedBlockID, ts, res.EvictedIsInstruction, false)
	case tscache.MissWithWriteBack:
		h.counters.misses.Add(1)
		h.counters.writeBacks.Add(1)
		h.shared.Record(res.EvictedBlockID, ts, false, true)
	}
}

// Stats returns the counters of the hierarchy. It can be called while the
// owner is running.
func (h *Hierarchy) Stats() Stats {
	warmed := h.counters.warmedSets.Load()

	return Stats{
		Accesses:    h.counters.accesses.Load(),
		Hits:        h.counters.hits.Load(),
		Misses:      h.counters.misses.Load(),
		Evictions:   h.counters.evictions.Load(),
		WriteBacks:  h.counters.writeBacks.Load(),
		ShadowHits:  h.counters.shadowHits.Load(),
		WarmedSets:  warmed,
		FullyWarmed: warmed == uint64(h.private.NumSets()),
	}
}
