// Package checkpoint defines the reconstructed cache state that seeds a
// full-system simulator, and the parameters of the caches it describes.
package checkpoint

import (
	"fmt"
)

// State is the coherence state of a cache line.
type State uint8

// The 5 coherence states, numbered the way the loader expects them.
const (
	Invalid State = iota
	CleanShared
	CleanExclusive
	ModifiedExclusive
	ModifiedOwned
)

var stateNames = [...]string{
	Invalid:           "Invalid",
	CleanShared:       "CleanShared",
	CleanExclusive:    "CleanExclusive",
	ModifiedExclusive: "ModifiedExclusive",
	ModifiedOwned:     "ModifiedOwned",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("State(%d)", s)
}

// IsValid returns true if the line holds a usable copy.
func (s State) IsValid() bool {
	return s != Invalid
}

// IsDirty returns true if the holder has to write the line back.
func (s State) IsDirty() bool {
	return s == ModifiedExclusive || s == ModifiedOwned
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown coherence state %d", s)
	}

	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}

	return fmt.Errorf("unknown coherence state %q", text)
}

// A Line is a rendered cache line.
type Line struct {
	BlockID            uint64 `json:"block_id"`
	State              State  `json:"state"`
	InInstructionCache bool   `json:"in_instruction_cache"`
	InDataCache        bool   `json:"in_data_cache"`
}

// A Cache lists the lines of every set, set by set. Lines in a set are ordered
// from the most to the least recently used.
type Cache [][]Line

// NumLines returns the number of lines in all sets.
func (c Cache) NumLines() int {
	n := 0
	for _, set := range c {
		n += len(set)
	}

	return n
}

// A DirectoryEntry records which cores hold a valid replica of a block and
// which core wrote it last.
type DirectoryEntry struct {
	BlockID    uint64 `json:"block_id"`
	Replicas   []int  `json:"replicas"`
	LastWriter *int   `json:"last_writer"`
}

// A Directory lists the entries of every directory set.
type Directory [][]DirectoryEntry

// NumEntries returns the number of entries in all sets.
func (d Directory) NumEntries() int {
	n := 0
	for _, set := range d {
		n += len(set)
	}

	return n
}

// A Checkpoint is the cache state of the whole machine at one point in time.
// It is not modified after it is rendered.
type Checkpoint struct {
	ID          string        `json:"id"`
	L1I         map[int]Cache `json:"l1i"`
	L1D         map[int]Cache `json:"l1d"`
	L2          map[int]Cache `json:"l2"`
	Directory   Directory     `json:"directory"`
	SharedCache Cache         `json:"shared_cache"`
}

// NumCores returns the number of cores that have private caches.
func (c *Checkpoint) NumCores() int {
	return len(c.L2)
}

// Summary counts lines per level and per state.
type Summary struct {
	Cores            int           `json:"cores"`
	L1ILines         int           `json:"l1i_lines"`
	L1DLines         int           `json:"l1d_lines"`
	L2Lines          int           `json:"l2_lines"`
	DirectoryEntries int           `json:"directory_entries"`
	SharedLines      int           `json:"shared_lines"`
	L2States         map[State]int `json:"l2_states"`
}

// Summarize counts the content of the checkpoint.
func (c *Checkpoint) Summarize() Summary {
	s := Summary{
		Cores:            c.NumCores(),
		DirectoryEntries: c.Directory.NumEntries(),
		SharedLines:      c.SharedCache.NumLines(),
		L2States:         make(map[State]int),
	}

	for _, cache := range c.L1I {
		s.L1ILines += cache.NumLines()
	}

	for _, cache := range c.L1D {
		s.L1DLines += cache.NumLines()
	}

	for _, cache := range c.L2 {
		s.L2Lines += cache.NumLines()

		for _, set := range cache {
			for _, l := range set {
				s.L2States[l.State]++
			}
		}
	}

	return s
}
