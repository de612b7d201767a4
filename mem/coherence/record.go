// Package coherence merges the private caches of all cores into per-block
// records and derives coherence states from them.
package coherence

import (
	"fmt"
	"slices"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/mem/tscache"
)

// Permission is how a block can be cached, joined over all the cores that
// hold it.
type Permission uint8

// The permissions a record can have. PermissionNone is only held by records
// that have seen nothing but invalidations.
const (
	PermissionNone Permission = iota
	PermissionInstruction
	PermissionInstructionAndCleanData
	PermissionCleanData
	PermissionDirtyData
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "None"
	case PermissionInstruction:
		return "Instruction"
	case PermissionInstructionAndCleanData:
		return "InstructionAndCleanData"
	case PermissionCleanData:
		return "CleanData"
	case PermissionDirtyData:
		return "DirtyData"
	}

	return fmt.Sprintf("Permission(%d)", p)
}

// InInstructionCache tells if the block belongs in instruction caches.
func (p Permission) InInstructionCache() bool {
	return p == PermissionInstruction || p == PermissionInstructionAndCleanData
}

// InDataCache tells if the block belongs in data caches.
func (p Permission) InDataCache() bool {
	return p == PermissionInstructionAndCleanData ||
		p == PermissionCleanData ||
		p == PermissionDirtyData
}

// IsDirty tells if some core holds a write to the block.
func (p Permission) IsDirty() bool {
	return p == PermissionDirtyData
}

func permissionOf(s tscache.Status) Permission {
	switch s {
	case tscache.Instruction:
		return PermissionInstruction
	case tscache.CleanInstructionAndData:
		return PermissionInstructionAndCleanData
	case tscache.CleanData:
		return PermissionCleanData
	case tscache.DirtyData:
		return PermissionDirtyData
	}

	return PermissionNone
}

// join merges two permissions. It reports false if the result would be both
// executable and dirty.
func (p Permission) join(q Permission) (Permission, bool) {
	if p == PermissionNone {
		return q, true
	}

	if q == PermissionNone || p == q {
		return p, true
	}

	if (p.IsDirty() && q.InInstructionCache()) ||
		(q.IsDirty() && p.InInstructionCache()) {
		return p, false
	}

	if p.IsDirty() || q.IsDirty() {
		return PermissionDirtyData, true
	}

	// The remaining pairs mix instructions and clean data.
	return PermissionInstructionAndCleanData, true
}

// A Writer is the core that holds the latest write to a block.
type Writer struct {
	Core      int    `json:"core"`
	Timestamp uint64 `json:"timestamp"`
}

// A Record aggregates what every core knows about a block.
type Record struct {
	BlockID uint64 `json:"block_id"`

	// Timestamp is the latest valid access from any core.
	Timestamp uint64 `json:"timestamp"`

	// Invalidated maps cores to the time their copy was invalidated.
	Invalidated map[int]uint64 `json:"invalidated"`

	// Readers maps cores to the time they last accessed a clean copy.
	Readers map[int]uint64 `json:"readers"`

	Writer     *Writer    `json:"writer"`
	Permission Permission `json:"permission"`
}

func newRecord(blockID uint64) *Record {
	return &Record{
		BlockID:     blockID,
		Invalidated: make(map[int]uint64),
		Readers:     make(map[int]uint64),
	}
}

func (r *Record) hasContribution(core int) bool {
	if _, found := r.Invalidated[core]; found {
		return true
	}

	if _, found := r.Readers[core]; found {
		return true
	}

	return r.Writer != nil && r.Writer.Core == core
}

// StateOf derives the coherence state of the block in the private caches of
// a core, and how recently the core touched it. It returns false if the core
// does not hold the block at all.
func (r *Record) StateOf(core int) (checkpoint.State, uint64, bool) {
	if ts, found := r.Invalidated[core]; found {
		return checkpoint.Invalid, ts, true
	}

	readTS, isReader := r.Readers[core]

	if w := r.Writer; w != nil {
		switch {
		case w.Core == core && w.Timestamp == r.Timestamp:
			return checkpoint.ModifiedExclusive, w.Timestamp, true
		case w.Core == core:
			return checkpoint.ModifiedOwned, w.Timestamp, true
		case !isReader:
			return checkpoint.Invalid, 0, false
		case readTS >= w.Timestamp:
			return checkpoint.CleanShared, readTS, true
		default:
			return checkpoint.Invalid, readTS, true
		}
	}

	if !isReader {
		return checkpoint.Invalid, 0, false
	}

	if len(r.Readers) == 1 {
		return checkpoint.CleanExclusive, readTS, true
	}

	return checkpoint.CleanShared, readTS, true
}

// Replicas returns the cores that read the block after the last write, in
// ascending order.
func (r *Record) Replicas() []int {
	replicas := make([]int, 0, len(r.Readers))

	for core, ts := range r.Readers {
		if r.Writer != nil && ts < r.Writer.Timestamp {
			continue
		}

		replicas = append(replicas, core)
	}

	slices.Sort(replicas)

	return replicas
}

// DirectoryEntry converts the record into a directory entry.
func (r *Record) DirectoryEntry() checkpoint.DirectoryEntry {
	e := checkpoint.DirectoryEntry{
		BlockID:  r.BlockID,
		Replicas: r.Replicas(),
	}

	if r.Writer != nil {
		writer := r.Writer.Core
		e.LastWriter = &writer
	}

	return e
}
