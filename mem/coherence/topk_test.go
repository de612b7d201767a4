package coherence

import (
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachewarm/checkpoint"
)

func timedLine(blockID, ts uint64) TimedLine {
	return TimedLine{
		Line:      checkpoint.Line{BlockID: blockID},
		Timestamp: ts,
	}
}

var _ = Describe("Selector", func() {
	It("should keep the k most recent lines", func() {
		s := NewSelector(3)

		for _, ts := range []uint64{5, 1, 9, 3, 7} {
			s.Offer(timedLine(ts, ts))
		}

		Expect(s.Len()).To(Equal(3))
		Expect(s.Lines()).To(Equal([]checkpoint.Line{
			{BlockID: 9}, {BlockID: 7}, {BlockID: 5},
		}))
	})

	It("should prefer smaller block ids on ties", func() {
		s := NewSelector(2)

		s.Offer(timedLine(8, 1))
		s.Offer(timedLine(2, 1))
		s.Offer(timedLine(5, 1))

		Expect(s.Timed()).To(Equal([]TimedLine{
			timedLine(2, 1), timedLine(5, 1),
		}))
	})

	It("should keep nothing if k is 0", func() {
		s := NewSelector(0)

		s.Offer(timedLine(1, 1))

		Expect(s.Lines()).To(BeEmpty())
	})
})

var _ = Describe("ForEachGroup", func() {
	It("should visit every group once", func() {
		visited := make([]int32, 100)

		ForEachGroup(len(visited), func(g int) {
			atomic.AddInt32(&visited[g], 1)
		})

		for _, v := range visited {
			Expect(v).To(Equal(int32(1)))
		}
	})

	It("should do nothing without groups", func() {
		ForEachGroup(0, func(int) { Fail("unexpected group") })
	})
})
