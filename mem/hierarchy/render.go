package hierarchy

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/mem/coherence"
	"github.com/sarchlab/cachewarm/mem/tscache"
)

// BuildRecordTable merges the private caches of all cores into a new record
// table.
func (m *Machine) BuildRecordTable(numBuckets int) *coherence.Table {
	table := coherence.NewTable(numBuckets, m.logger)

	for _, h := range m.hierarchies {
		table.Absorb(h.coreID, h.private)
	}

	return table
}

type sharedLine struct {
	timestamp     uint64
	dirty         bool
	isInstruction bool
	isData        bool
}

// RenderSharedCache rebuilds the shared cache from the shadow caches of all
// cores. Blocks that the record table tracks are left to the private caches.
// A block held by several cores is dirty if any of them wrote it.
func (m *Machine) RenderSharedCache(
	table *coherence.Table,
	params checkpoint.SharedCacheParams,
) checkpoint.Cache {
	if params.Sets <= 0 || params.Sets&(params.Sets-1) != 0 {
		panic(fmt.Errorf("hierarchy: shared set count %d is not a power of 2",
			params.Sets))
	}

	if params.Ways <= 0 {
		panic(fmt.Errorf("hierarchy: shared associativity must be larger than 0"))
	}

	mask := uint64(params.Sets - 1)
	sets := make([]map[uint64]*sharedLine, params.Sets)

	for i := range sets {
		sets[i] = make(map[uint64]*sharedLine)
	}

	for _, h := range m.hierarchies {
		h.shared.ForEachLine(func(l tscache.Line) {
			if table.Contains(l.BlockID) {
				return
			}

			mergeSharedLine(sets[l.BlockID&mask], l)
		})
	}

	cache := make(checkpoint.Cache, params.Sets)

	coherence.ForEachGroup(params.Sets, func(set int) {
		s := coherence.NewSelector(params.Ways)

		for blockID, l := range sets[set] {
			state := checkpoint.CleanExclusive
			if l.dirty {
				state = checkpoint.ModifiedExclusive
			}

			s.Offer(coherence.TimedLine{
				Line: checkpoint.Line{
					BlockID:            blockID,
					State:              state,
					InInstructionCache: l.isInstruction,
					InDataCache:        l.isData,
				},
				Timestamp: l.timestamp,
			})
		}

		cache[set] = s.Lines()
	})

	return cache
}

func mergeSharedLine(set map[uint64]*sharedLine, l tscache.Line) {
	merged, found := set[l.BlockID]
	if !found {
		merged = &sharedLine{}
		set[l.BlockID] = merged
	}

	merged.dirty = merged.dirty || l.Status.IsDirty()
	merged.isInstruction = merged.isInstruction || l.Status.IsInstruction()
	merged.isData = merged.isData || l.Status.IsData()

	if merged.dirty && merged.isInstruction {
		panic(&tscache.NXViolationError{
			BlockID:       l.BlockID,
			Status:        l.Status,
			IsInstruction: l.Status.IsInstruction(),
			IsWrite:       l.Status.IsDirty(),
		})
	}

	if l.Timestamp > merged.timestamp {
		merged.timestamp = l.Timestamp
	}
}

// RenderCheckpoint renders the private caches of every core, the directory
// and the shared cache.
func (m *Machine) RenderCheckpoint(
	table *coherence.Table,
	params checkpoint.Params,
) *checkpoint.Checkpoint {
	params.MustValidate()

	cp := &checkpoint.Checkpoint{
		ID:  xid.New().String(),
		L1I: make(map[int]checkpoint.Cache, len(m.hierarchies)),
		L1D: make(map[int]checkpoint.Cache, len(m.hierarchies)),
		L2:  make(map[int]checkpoint.Cache, len(m.hierarchies)),
	}

	for _, h := range m.hierarchies {
		caches := table.RenderPrivateCaches(h.coreID, params.Private)

		cp.L1I[h.coreID] = caches[coherence.L1I]
		cp.L1D[h.coreID] = caches[coherence.L1D]
		cp.L2[h.coreID] = caches[coherence.L2]
	}

	cp.Directory = table.ExportDirectory()
	cp.SharedCache = m.RenderSharedCache(table, params.Shared)

	return cp
}

// Checkpoint builds a record table, prunes it if the directory is bounded,
// and renders it. No worker may run while the checkpoint is taken.
func (m *Machine) Checkpoint(params checkpoint.Params) *checkpoint.Checkpoint {
	params.MustValidate()

	table := m.BuildRecordTable(params.RecordBuckets)

	if params.DirectoryWays > 0 {
		table.PruneByAssociativity(params.DirectoryWays)
	}

	if n := table.InaccurateWrites(); n > 0 {
		m.logger.Printf("checkpoint may be inaccurate: %d blocks written by "+
			"several cores at the same time", n)
	}

	return m.RenderCheckpoint(table, params)
}
