package coherence

import (
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/mem/tscache"
)

var _ = Describe("Rendering", func() {
	var (
		table  *Table
		params checkpoint.PrivateCacheParams
	)

	BeforeEach(func() {
		table = NewTable(4, log.New(GinkgoWriter, "", 0))
		params = checkpoint.PrivateCacheParams{
			L1ISets: 1, L1IWays: 1,
			L1DSets: 1, L1DWays: 1,
			L2Sets: 2, L2Ways: 2,
		}
	})

	blockIDs := func(lines []checkpoint.Line) []uint64 {
		ids := make([]uint64, len(lines))
		for i, l := range lines {
			ids[i] = l.BlockID
		}

		return ids
	}

	It("should export the directory most recent first", func() {
		table.AbsorbLine(0, line(0, 3, tscache.CleanData))
		table.AbsorbLine(0, line(4, 9, tscache.DirtyData))
		table.AbsorbLine(1, line(8, 6, tscache.CleanData))
		table.AbsorbLine(1, line(1, 2, tscache.CleanData))

		dir := table.ExportDirectory()

		Expect(dir).To(HaveLen(4))
		Expect(dir[0]).To(HaveLen(3))
		Expect(dir[0][0].BlockID).To(Equal(uint64(4)))
		Expect(*dir[0][0].LastWriter).To(Equal(0))
		Expect(dir[0][1].BlockID).To(Equal(uint64(8)))
		Expect(dir[0][1].Replicas).To(Equal([]int{1}))
		Expect(dir[0][2].BlockID).To(Equal(uint64(0)))
		Expect(dir[1]).To(HaveLen(1))
		Expect(dir[2]).To(BeEmpty())
	})

	It("should keep the most recent lines of each L2 set", func() {
		table.AbsorbLine(0, line(0, 1, tscache.CleanData))
		table.AbsorbLine(0, line(2, 2, tscache.CleanData))
		table.AbsorbLine(0, line(4, 3, tscache.CleanData))
		table.AbsorbLine(0, line(1, 4, tscache.Instruction))
		table.AbsorbLine(1, line(6, 5, tscache.CleanData))

		caches := table.RenderPrivateCaches(0, params)

		Expect(caches[L2]).To(HaveLen(2))
		Expect(blockIDs(caches[L2][0])).To(Equal([]uint64{4, 2}))
		Expect(blockIDs(caches[L2][1])).To(Equal([]uint64{1}))
		Expect(caches[L2][0][0].State).To(Equal(checkpoint.CleanExclusive))

		Expect(blockIDs(caches[L1D][0])).To(Equal([]uint64{4}))
		Expect(blockIDs(caches[L1I][0])).To(Equal([]uint64{1}))
		Expect(caches[L1I][0][0].InInstructionCache).To(BeTrue())
		Expect(caches[L1I][0][0].InDataCache).To(BeFalse())
	})

	It("should only put lines kept in L2 into L1", func() {
		params.L2Ways = 1
		params.L1DWays = 4

		table.AbsorbLine(0, line(0, 1, tscache.CleanData))
		table.AbsorbLine(0, line(2, 2, tscache.CleanData))
		table.AbsorbLine(0, line(3, 3, tscache.CleanData))

		caches := table.RenderPrivateCaches(0, params)

		Expect(blockIDs(caches[L2][0])).To(Equal([]uint64{2}))
		Expect(blockIDs(caches[L1D][0])).To(Equal([]uint64{3, 2}))
	})

	It("should render invalidated lines", func() {
		table.AbsorbLine(1, line(2, 4, tscache.CleanData))
		table.AbsorbLine(0, line(2, 10, tscache.Invalid))
		table.AbsorbLine(0, line(0, 1, tscache.CleanData))

		caches := table.RenderPrivateCaches(0, params)

		Expect(caches[L2][0]).To(HaveLen(2))
		Expect(caches[L2][0][0].BlockID).To(Equal(uint64(2)))
		Expect(caches[L2][0][0].State).To(Equal(checkpoint.Invalid))
		Expect(caches[L2][0][1].State).To(Equal(checkpoint.CleanExclusive))
	})

	It("should render the lines of each core", func() {
		table.AbsorbLine(0, line(1, 2, tscache.DirtyData))
		table.AbsorbLine(1, line(1, 3, tscache.CleanData))

		owner := table.RenderPrivateCaches(0, params)
		reader := table.RenderPrivateCaches(1, params)

		Expect(owner[L2][1][0].State).To(Equal(checkpoint.ModifiedOwned))
		Expect(reader[L2][1][0].State).To(Equal(checkpoint.CleanShared))
		Expect(reader[L1I][0]).To(BeEmpty())
	})

	It("should panic if L2 sets do not divide the buckets", func() {
		params.L2Sets = 8

		Expect(func() { table.RenderPrivateCaches(0, params) }).To(Panic())
	})

	It("should panic on invalid parameters", func() {
		params.L1ISets = 3

		Expect(func() { table.RenderPrivateCaches(0, params) }).To(Panic())
	})
})
