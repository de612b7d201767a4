package hierarchy

import (
	"fmt"
	"log"
	"sync/atomic"
)

// An Event is a memory access performed by a core.
type Event struct {
	CoreID        int
	BlockID       uint64
	Timestamp     uint64
	IsInstruction bool
	IsWrite       bool
}

// A Machine holds the hierarchies of all cores.
//
// Each hierarchy has a single writer. A worker that simulates a core obtains
// the hierarchy of the core with Claim, and from then on is the only one that
// may access it. Rendering reads all the hierarchies and must only happen when
// no worker is running.
type Machine struct {
	hierarchies []*Hierarchy
	claimed     []atomic.Bool
	logger      *log.Logger
}

// NumCores returns the number of cores.
func (m *Machine) NumCores() int {
	return len(m.hierarchies)
}

// Claim hands the hierarchy of a core to the calling worker. Each core can
// only be claimed once.
func (m *Machine) Claim(coreID int) (*Hierarchy, error) {
	if coreID < 0 || coreID >= len(m.hierarchies) {
		return nil, fmt.Errorf("core %d does not exist, the machine has %d cores",
			coreID, len(m.hierarchies))
	}

	if !m.claimed[coreID].CompareAndSwap(false, true) {
		return nil, fmt.Errorf("core %d is already claimed", coreID)
	}

	return m.hierarchies[coreID], nil
}

// Dispatch sends an event to the hierarchy of its core. It is meant for
// drivers that run all cores in a single goroutine and never claim any core.
func (m *Machine) Dispatch(e Event) {
	m.hierarchies[e.CoreID].AccessBlock(
		e.Timestamp, e.BlockID, e.IsInstruction, e.IsWrite)
}

// Stats returns the stats of every core.
func (m *Machine) Stats() []Stats {
	stats := make([]Stats, len(m.hierarchies))
	for i, h := range m.hierarchies {
		stats[i] = h.Stats()
	}

	return stats
}

// CoreStats returns the stats of a single core.
func (m *Machine) CoreStats(coreID int) (Stats, bool) {
	if coreID < 0 || coreID >= len(m.hierarchies) {
		return Stats{}, false
	}

	return m.hierarchies[coreID].Stats(), true
}
