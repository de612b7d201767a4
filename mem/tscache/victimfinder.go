package tscache

// A VictimFinder decides which way of a full set should be replaced.
type VictimFinder interface {
	FindVictim(set *Set) int
}

// LRUVictimFinder evicts the line with the smallest timestamp.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the way to replace. Invalid ways are reused first. Among
// valid ways, the smallest timestamp wins and ties go to the lowest way.
func (e *LRUVictimFinder) FindVictim(set *Set) int {
	for i := range set.lines {
		if set.lines[i].Status == Invalid {
			return i
		}
	}

	victim := 0
	for i := 1; i < len(set.lines); i++ {
		if set.lines[i].Timestamp < set.lines[victim].Timestamp {
			victim = i
		}
	}

	return victim
}
