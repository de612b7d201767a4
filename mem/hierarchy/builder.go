package hierarchy

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/sarchlab/cachewarm/mem/tscache"
)

// Builder can build machines.
type Builder struct {
	numCores          int
	log2CacheLineSize int
	privateSets       int
	privateWays       int
	sharedSets        int
	sharedWays        int
	logger            *log.Logger
}

// MakeBuilder creates a new builder with 64B lines, a 2MB 16-way private cache
// and a 4MB 16-way shadow cache.
func MakeBuilder() Builder {
	return Builder{
		numCores:          1,
		log2CacheLineSize: 6,
		privateSets:       2048,
		privateWays:       16,
		sharedSets:        4096,
		sharedWays:        16,
	}
}

// WithNumCores sets the number of cores.
func (b Builder) WithNumCores(numCores int) Builder {
	b.numCores = numCores
	return b
}

// WithLog2CacheLineSize sets the log2 of the cache line size.
func (b Builder) WithLog2CacheLineSize(log2CacheLineSize int) Builder {
	b.log2CacheLineSize = log2CacheLineSize
	return b
}

// WithPrivateCache sets the geometry of the private cache of each core.
func (b Builder) WithPrivateCache(numSets, numWays int) Builder {
	b.privateSets = numSets
	b.privateWays = numWays

	return b
}

// WithSharedCache sets the geometry of the shared shadow cache of each core.
func (b Builder) WithSharedCache(numSets, numWays int) Builder {
	b.sharedSets = numSets
	b.sharedWays = numWays

	return b
}

// WithLogger sets where inaccuracies found while rendering are reported.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// Build builds a machine.
func (b Builder) Build() *Machine {
	if b.numCores <= 0 {
		panic(fmt.Errorf("hierarchy: core count must be larger than 0, got %d",
			b.numCores))
	}

	if b.log2CacheLineSize < 0 || b.log2CacheLineSize >= 64 {
		panic(fmt.Errorf("hierarchy: invalid log2 cache line size %d",
			b.log2CacheLineSize))
	}

	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	m := &Machine{
		hierarchies: make([]*Hierarchy, b.numCores),
		claimed:     make([]atomic.Bool, b.numCores),
		logger:      logger,
	}

	for i := range m.hierarchies {
		m.hierarchies[i] = &Hierarchy{
			coreID:       i,
			log2LineSize: uint(b.log2CacheLineSize),
			private:      tscache.NewCache(b.privateSets, b.privateWays),
			shared:       tscache.NewCache(b.sharedSets, b.sharedWays),
		}
	}

	return m
}
