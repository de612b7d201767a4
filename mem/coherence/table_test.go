package coherence

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachewarm/mem/tscache"
)

func line(blockID, ts uint64, status tscache.Status) tscache.Line {
	return tscache.Line{BlockID: blockID, Timestamp: ts, Status: status}
}

var _ = Describe("Table", func() {
	var (
		mockCtrl *gomock.Controller
		logBuf   *bytes.Buffer
		table    *Table
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logBuf = new(bytes.Buffer)
		table = NewTable(4, log.New(logBuf, "", 0))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic if the bucket count is not a power of 2", func() {
		Expect(func() { NewTable(6, nil) }).To(Panic())
		Expect(func() { NewTable(0, nil) }).To(Panic())
	})

	It("should place blocks by their low bits", func() {
		Expect(table.NumBuckets()).To(Equal(4))
		Expect(table.BucketIndex(0x17)).To(Equal(3))
	})

	It("should absorb the lines of a core", func() {
		src := NewMockLineSource(mockCtrl)
		src.EXPECT().
			ForEachEntry(gomock.Any()).
			Do(func(fn func(tscache.Line)) {
				fn(line(1, 5, tscache.CleanData))
				fn(line(2, 7, tscache.DirtyData))
			})

		table.Absorb(0, src)

		Expect(table.Len()).To(Equal(2))
		Expect(table.Contains(1)).To(BeTrue())
		Expect(table.Contains(3)).To(BeFalse())

		r, found := table.Lookup(2)
		Expect(found).To(BeTrue())
		Expect(r.Writer).To(Equal(&Writer{Core: 0, Timestamp: 7}))
		Expect(r.Permission).To(Equal(PermissionDirtyData))
	})

	It("should panic if a core is absorbed twice", func() {
		src := NewMockLineSource(mockCtrl)
		src.EXPECT().ForEachEntry(gomock.Any()).Times(1)

		table.Absorb(0, src)

		Expect(func() { table.Absorb(0, src) }).
			To(PanicWith(BeAssignableToTypeOf(&DoubleAbsorptionError{})))
	})

	It("should panic if a core contributes to a block twice", func() {
		table.AbsorbLine(0, line(1, 5, tscache.CleanData))

		Expect(func() { table.AbsorbLine(0, line(1, 6, tscache.Invalid)) }).
			To(PanicWith(BeAssignableToTypeOf(&DoubleAbsorptionError{})))
	})

	It("should keep the latest valid timestamp", func() {
		table.AbsorbLine(0, line(1, 5, tscache.CleanData))
		table.AbsorbLine(1, line(1, 9, tscache.CleanData))
		table.AbsorbLine(2, line(1, 20, tscache.Invalid))
		table.AbsorbLine(3, line(1, 3, tscache.CleanData))

		r, _ := table.Lookup(1)
		Expect(r.Timestamp).To(Equal(uint64(9)))
		Expect(r.Invalidated).To(Equal(map[int]uint64{2: 20}))
		Expect(r.Readers).To(Equal(map[int]uint64{0: 5, 1: 9, 3: 3}))
	})

	It("should track blocks that are only invalidated", func() {
		table.AbsorbLine(0, line(1, 5, tscache.Invalid))

		r, _ := table.Lookup(1)
		Expect(r.Timestamp).To(BeZero())
		Expect(r.Permission).To(Equal(PermissionNone))
	})

	It("should join instruction and data permissions", func() {
		table.AbsorbLine(0, line(1, 5, tscache.Instruction))
		table.AbsorbLine(1, line(1, 6, tscache.CleanData))

		r, _ := table.Lookup(1)
		Expect(r.Permission).To(Equal(PermissionInstructionAndCleanData))
		Expect(r.Permission.InInstructionCache()).To(BeTrue())
		Expect(r.Permission.InDataCache()).To(BeTrue())
	})

	It("should panic if an executable block is written", func() {
		table.AbsorbLine(0, line(1, 5, tscache.Instruction))

		Expect(func() { table.AbsorbLine(1, line(1, 6, tscache.DirtyData)) }).
			To(PanicWith(BeAssignableToTypeOf(&tscache.NXViolationError{})))
	})

	It("should panic if a written block is executed", func() {
		table.AbsorbLine(0, line(1, 5, tscache.DirtyData))

		Expect(func() {
			table.AbsorbLine(1, line(1, 6, tscache.CleanInstructionAndData))
		}).To(PanicWith(BeAssignableToTypeOf(&tscache.NXViolationError{})))
	})

	It("should keep the newest writer", func() {
		table.AbsorbLine(0, line(1, 9, tscache.DirtyData))
		table.AbsorbLine(1, line(1, 4, tscache.DirtyData))

		r, _ := table.Lookup(1)
		Expect(r.Writer).To(Equal(&Writer{Core: 0, Timestamp: 9}))
		Expect(table.InaccurateWrites()).To(BeZero())
		Expect(logBuf.Len()).To(BeZero())
	})

	It("should log writers with the same timestamp", func() {
		table.AbsorbLine(0, line(1, 9, tscache.DirtyData))
		table.AbsorbLine(1, line(1, 9, tscache.DirtyData))

		r, _ := table.Lookup(1)
		Expect(r.Writer).To(Equal(&Writer{Core: 1, Timestamp: 9}))
		Expect(table.InaccurateWrites()).To(Equal(1))
		Expect(logBuf.String()).To(ContainSubstring("possible inaccuracy"))
	})

	Context("when pruning", func() {
		BeforeEach(func() {
			table = NewTable(1, log.New(logBuf, "", 0))
		})

		It("should keep the most recent records of each bucket", func() {
			for i := uint64(1); i <= 5; i++ {
				table.AbsorbLine(0, line(i, i*10, tscache.CleanData))
			}

			table.PruneByAssociativity(3)

			Expect(table.Len()).To(Equal(3))
			Expect(table.Contains(5)).To(BeTrue())
			Expect(table.Contains(4)).To(BeTrue())
			Expect(table.Contains(3)).To(BeTrue())
			Expect(table.Contains(2)).To(BeFalse())
		})

		It("should keep exactly k records when timestamps tie", func() {
			table.AbsorbLine(0, line(7, 10, tscache.CleanData))
			table.AbsorbLine(0, line(3, 10, tscache.CleanData))
			table.AbsorbLine(0, line(5, 10, tscache.CleanData))

			table.PruneByAssociativity(2)

			Expect(table.Len()).To(Equal(2))
			Expect(table.Contains(3)).To(BeTrue())
			Expect(table.Contains(5)).To(BeTrue())
		})

		It("should not touch small buckets", func() {
			table.AbsorbLine(0, line(1, 10, tscache.CleanData))

			table.PruneByAssociativity(4)

			Expect(table.Len()).To(Equal(1))
		})

		It("should panic on a zero associativity", func() {
			Expect(func() { table.PruneByAssociativity(0) }).To(Panic())
		})
	})
})
