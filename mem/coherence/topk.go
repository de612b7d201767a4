package coherence

import (
	"container/heap"
	"slices"

	"github.com/sarchlab/cachewarm/checkpoint"
)

// A TimedLine is a rendered line together with the last time it was touched.
type TimedLine struct {
	checkpoint.Line
	Timestamp uint64
}

// older tells if a should be evicted before b. Among equal timestamps, the
// larger block id goes first.
func older(a, b TimedLine) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}

	return a.BlockID > b.BlockID
}

type lineHeap []TimedLine

func (h lineHeap) Len() int           { return len(h) }
func (h lineHeap) Less(i, j int) bool { return older(h[i], h[j]) }
func (h lineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *lineHeap) Push(x any) {
	*h = append(*h, x.(TimedLine))
}

func (h *lineHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]

	return x
}

// A Selector keeps the k most recent lines offered to it, without sorting all
// of them.
type Selector struct {
	k     int
	lines lineHeap
}

// NewSelector creates a selector that keeps k lines.
func NewSelector(k int) *Selector {
	return &Selector{
		k:     k,
		lines: make(lineHeap, 0, k),
	}
}

// Offer adds a line if it is more recent than the oldest line kept.
func (s *Selector) Offer(l TimedLine) {
	if s.k <= 0 {
		return
	}

	if len(s.lines) < s.k {
		heap.Push(&s.lines, l)
		return
	}

	if older(s.lines[0], l) {
		s.lines[0] = l
		heap.Fix(&s.lines, 0)
	}
}

// Len returns the number of lines kept.
func (s *Selector) Len() int {
	return len(s.lines)
}

// Timed returns the lines kept, most recent first.
func (s *Selector) Timed() []TimedLine {
	lines := slices.Clone(s.lines)
	slices.SortFunc(lines, func(a, b TimedLine) int {
		switch {
		case older(b, a):
			return -1
		case older(a, b):
			return 1
		}

		return 0
	})

	return lines
}

// Lines returns the lines kept, most recent first.
func (s *Selector) Lines() []checkpoint.Line {
	return stripTimes(s.Timed())
}
