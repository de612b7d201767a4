package coherence

import (
	"fmt"
	"log"
	"slices"

	"github.com/sarchlab/cachewarm/mem/tscache"
)

// A LineSource lists the entries of a private cache, including the ones that
// were invalidated.
type LineSource interface {
	ForEachEntry(fn func(tscache.Line))
}

// A DoubleAbsorptionError is raised when the lines of a core are merged into a
// table more than once.
type DoubleAbsorptionError struct {
	Core    int
	BlockID uint64
}

func (e *DoubleAbsorptionError) Error() string {
	return fmt.Sprintf(
		"core %d contributes to block 0x%x more than once; "+
			"is its cache absorbed twice?", e.Core, e.BlockID)
}

// A Table holds the records of all the blocks seen by any core. Blocks are
// spread over buckets by the low bits of their ids, so that a bucket maps onto
// a set of the rendered caches.
//
// A table is built once per checkpoint and dropped after rendering.
type Table struct {
	buckets  []map[uint64]*Record
	mask     uint64
	absorbed map[int]bool
	logger   *log.Logger

	inaccurateWrites int
}

// NewTable creates an empty table. The number of buckets must be a power of
// two. Inaccurate merges are reported to the logger; a nil logger uses the
// standard logger.
func NewTable(numBuckets int, logger *log.Logger) *Table {
	if numBuckets <= 0 || numBuckets&(numBuckets-1) != 0 {
		panic(fmt.Errorf("coherence: bucket count must be a power of 2, got %d",
			numBuckets))
	}

	if logger == nil {
		logger = log.Default()
	}

	t := &Table{
		buckets:  make([]map[uint64]*Record, numBuckets),
		mask:     uint64(numBuckets - 1),
		absorbed: make(map[int]bool),
		logger:   logger,
	}

	for i := range t.buckets {
		t.buckets[i] = make(map[uint64]*Record)
	}

	return t
}

// NumBuckets returns the number of buckets.
func (t *Table) NumBuckets() int {
	return len(t.buckets)
}

// BucketIndex returns the bucket that holds blockID.
func (t *Table) BucketIndex(blockID uint64) int {
	return int(blockID & t.mask)
}

// Len returns the number of records.
func (t *Table) Len() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}

	return n
}

// Lookup returns the record of blockID.
func (t *Table) Lookup(blockID uint64) (*Record, bool) {
	r, found := t.buckets[blockID&t.mask][blockID]
	return r, found
}

// Contains tells if blockID has a record.
func (t *Table) Contains(blockID uint64) bool {
	_, found := t.buckets[blockID&t.mask][blockID]
	return found
}

// InaccurateWrites returns how many times two cores were seen writing the same
// block at the same time.
func (t *Table) InaccurateWrites() int {
	return t.inaccurateWrites
}

// Absorb merges every entry of the private cache of a core. Each core can only
// be absorbed once.
func (t *Table) Absorb(core int, src LineSource) {
	if t.absorbed[core] {
		panic(&DoubleAbsorptionError{Core: core})
	}

	t.absorbed[core] = true

	src.ForEachEntry(func(l tscache.Line) {
		t.AbsorbLine(core, l)
	})
}

// AbsorbLine merges a single observation of a core.
func (t *Table) AbsorbLine(core int, line tscache.Line) {
	bucket := t.buckets[line.BlockID&t.mask]

	r, found := bucket[line.BlockID]
	if !found {
		r = newRecord(line.BlockID)
		bucket[line.BlockID] = r
	} else if r.hasContribution(core) {
		panic(&DoubleAbsorptionError{Core: core, BlockID: line.BlockID})
	}

	if line.Status == tscache.Invalid {
		r.Invalidated[core] = line.Timestamp
		return
	}

	perm, ok := r.Permission.join(permissionOf(line.Status))
	if !ok {
		panic(&tscache.NXViolationError{
			BlockID:       line.BlockID,
			Status:        line.Status,
			IsInstruction: line.Status.IsInstruction(),
			IsWrite:       line.Status.IsDirty(),
		})
	}

	r.Permission = perm

	if line.Timestamp > r.Timestamp {
		r.Timestamp = line.Timestamp
	}

	if line.Status.IsDirty() {
		t.mergeWriter(r, core, line.Timestamp)
		return
	}

	r.Readers[core] = line.Timestamp
}

func (t *Table) mergeWriter(r *Record, core int, ts uint64) {
	switch {
	case r.Writer == nil:
		r.Writer = &Writer{Core: core, Timestamp: ts}
	case r.Writer.Timestamp < ts:
		r.Writer = &Writer{Core: core, Timestamp: ts}
	case r.Writer.Timestamp == ts:
		t.inaccurateWrites++
		t.logger.Printf(
			"possible inaccuracy: core %d and core %d both write "+
				"block 0x%x at ts %d, keeping core %d",
			r.Writer.Core, core, r.BlockID, ts, core)
		r.Writer = &Writer{Core: core, Timestamp: ts}
	}
}

// newerRecord orders records from the most to the least recently used. Ties
// go to the smaller block id so that the order is stable.
func newerRecord(a, b *Record) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp > b.Timestamp {
			return -1
		}

		return 1
	}

	if a.BlockID < b.BlockID {
		return -1
	}

	if a.BlockID > b.BlockID {
		return 1
	}

	return 0
}

func (t *Table) sortedBucket(i int) []*Record {
	records := make([]*Record, 0, len(t.buckets[i]))
	for _, r := range t.buckets[i] {
		records = append(records, r)
	}

	slices.SortFunc(records, newerRecord)

	return records
}

// PruneByAssociativity keeps, in each bucket, only the k records with the
// largest timestamps.
func (t *Table) PruneByAssociativity(k int) {
	if k <= 0 {
		panic(fmt.Errorf("coherence: associativity must be larger than 0, got %d",
			k))
	}

	for i, bucket := range t.buckets {
		if len(bucket) <= k {
			continue
		}

		for _, r := range t.sortedBucket(i)[k:] {
			delete(bucket, r.BlockID)
		}
	}
}
