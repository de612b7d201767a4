package tscache

import "fmt"

// A Cache is an array of timestamp sets. A block is stored in the set indexed
// by the low bits of its block id.
type Cache struct {
	sets       []Set
	numWays    int
	setMask    uint64
	warmedSets int
}

// NewCache creates a cache that replaces the oldest line of a full set.
func NewCache(numSets, numWays int) *Cache {
	return NewCacheWithVictimFinder(numSets, numWays, NewLRUVictimFinder())
}

// NewCacheWithVictimFinder creates a cache that uses the given victim finder
// in all its sets. It panics if numSets is not a power of two or if numWays is
// zero.
func NewCacheWithVictimFinder(
	numSets, numWays int,
	victimFinder VictimFinder,
) *Cache {
	mustBePowerOfTwo("number of sets", numSets)

	if numWays <= 0 {
		panic(fmt.Errorf("tscache: associativity must be larger than 0, got %d",
			numWays))
	}

	c := &Cache{
		sets:    make([]Set, numSets),
		numWays: numWays,
		setMask: uint64(numSets - 1),
	}

	storage := make([]Line, numSets*numWays)
	for i := range c.sets {
		c.sets[i] = Set{
			lines:        storage[i*numWays : (i+1)*numWays : (i+1)*numWays],
			victimFinder: victimFinder,
		}
	}

	return c
}

func mustBePowerOfTwo(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Errorf("tscache: %s must be a power of 2, got %d", what, n))
	}
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return len(c.sets)
}

// NumWays returns the associativity.
func (c *Cache) NumWays() int {
	return c.numWays
}

// SetIndex returns the index of the set that holds blockID.
func (c *Cache) SetIndex(blockID uint64) int {
	return int(blockID & c.setMask)
}

// Set returns the set at index i.
func (c *Cache) Set(i int) *Set {
	return &c.sets[i]
}

// Record records an access into the cache.
func (c *Cache) Record(
	blockID, ts uint64,
	isInstruction, isWrite bool,
) AccessResult {
	set := &c.sets[blockID&c.setMask]

	before := set.fill
	res := set.Access(blockID, ts, isInstruction, isWrite)

	if before == c.numWays-1 && set.fill == c.numWays {
		c.warmedSets++
	}

	return res
}

// Peek refreshes blockID if it is present. It never inserts.
func (c *Cache) Peek(blockID, ts uint64, isInstruction, isWrite bool) bool {
	return c.sets[blockID&c.setMask].Peek(blockID, ts, isInstruction, isWrite)
}

// Invalidate removes blockID from the cache.
func (c *Cache) Invalidate(blockID uint64) (Line, bool) {
	return c.sets[blockID&c.setMask].Invalidate(blockID)
}

// WarmedSets returns the number of sets that have been filled completely.
func (c *Cache) WarmedSets() int {
	return c.warmedSets
}

// IsFullyWarmed tells if every set has been filled at least once.
func (c *Cache) IsFullyWarmed() bool {
	return c.warmedSets == len(c.sets)
}

// Len returns the number of valid lines.
func (c *Cache) Len() int {
	n := 0
	for i := range c.sets {
		n += c.sets[i].Len()
	}

	return n
}

// Usage returns the fraction of ways that hold valid lines.
func (c *Cache) Usage() float64 {
	return float64(c.Len()) / float64(len(c.sets)*c.numWays)
}

// ForEachLine calls fn with every valid line, set by set.
func (c *Cache) ForEachLine(fn func(Line)) {
	for i := range c.sets {
		c.sets[i].ForEach(fn)
	}
}

// ForEachEntry calls fn with every filled way, set by set, including the
// invalidated ones.
func (c *Cache) ForEachEntry(fn func(Line)) {
	for i := range c.sets {
		c.sets[i].ForEachEntry(fn)
	}
}
