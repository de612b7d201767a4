package coherence

import (
	"fmt"

	"github.com/sarchlab/cachewarm/checkpoint"
)

// ExportDirectory lists the records of every bucket, most recent first.
func (t *Table) ExportDirectory() checkpoint.Directory {
	dir := make(checkpoint.Directory, len(t.buckets))

	for i := range t.buckets {
		records := t.sortedBucket(i)

		entries := make([]checkpoint.DirectoryEntry, len(records))
		for j, r := range records {
			entries[j] = r.DirectoryEntry()
		}

		dir[i] = entries
	}

	return dir
}

// The levels returned by RenderPrivateCaches.
const (
	L1I = iota
	L1D
	L2
)

// RenderPrivateCaches rebuilds the L1I, L1D and L2 caches of a core. The L2
// keeps the most recent blocks of the core in each set. The L1 caches are
// then taken from the lines kept in L2, so that L2 is inclusive.
func (t *Table) RenderPrivateCaches(
	core int,
	params checkpoint.PrivateCacheParams,
) [3]checkpoint.Cache {
	if err := params.Validate(); err != nil {
		panic(err)
	}

	if len(t.buckets)%params.L2Sets != 0 {
		panic(fmt.Errorf(
			"coherence: L2 set count %d does not divide bucket count %d",
			params.L2Sets, len(t.buckets)))
	}

	l2 := make([][]TimedLine, params.L2Sets)

	ForEachGroup(params.L2Sets, func(set int) {
		l2[set] = t.selectL2Set(core, set, params)
	})

	var caches [3]checkpoint.Cache

	caches[L2] = make(checkpoint.Cache, params.L2Sets)
	for set, lines := range l2 {
		caches[L2][set] = stripTimes(lines)
	}

	caches[L1I] = selectL1(l2, params.L1ISets, params.L1IWays,
		func(l TimedLine) bool { return l.InInstructionCache })
	caches[L1D] = selectL1(l2, params.L1DSets, params.L1DWays,
		func(l TimedLine) bool { return l.InDataCache })

	return caches
}

func (t *Table) selectL2Set(
	core, set int,
	params checkpoint.PrivateCacheParams,
) []TimedLine {
	s := NewSelector(params.L2Ways)

	for b := set; b < len(t.buckets); b += params.L2Sets {
		for _, r := range t.buckets[b] {
			state, ts, held := r.StateOf(core)
			if !held {
				continue
			}

			s.Offer(TimedLine{
				Line: checkpoint.Line{
					BlockID:            r.BlockID,
					State:              state,
					InInstructionCache: r.Permission.InInstructionCache(),
					InDataCache:        r.Permission.InDataCache(),
				},
				Timestamp: ts,
			})
		}
	}

	return s.Timed()
}

func selectL1(
	l2 [][]TimedLine,
	numSets, numWays int,
	resident func(TimedLine) bool,
) checkpoint.Cache {
	cache := make(checkpoint.Cache, numSets)

	ForEachGroup(numSets, func(set int) {
		s := NewSelector(numWays)

		for g := set; g < len(l2); g += numSets {
			for _, l := range l2[g] {
				if resident(l) {
					s.Offer(l)
				}
			}
		}

		cache[set] = s.Lines()
	})

	return cache
}

func stripTimes(timed []TimedLine) []checkpoint.Line {
	lines := make([]checkpoint.Line, len(timed))
	for i, l := range timed {
		lines[i] = l.Line
	}

	return lines
}
