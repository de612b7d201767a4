package coherence

import (
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachewarm/checkpoint"
	"github.com/sarchlab/cachewarm/mem/tscache"
)

var _ = Describe("Record", func() {
	var table *Table

	BeforeEach(func() {
		table = NewTable(1, log.New(GinkgoWriter, "", 0))
	})

	stateOf := func(core int) checkpoint.State {
		r, found := table.Lookup(1)
		Expect(found).To(BeTrue())

		state, _, _ := r.StateOf(core)

		return state
	}

	It("should be exclusive if a single core reads", func() {
		table.AbsorbLine(0, line(1, 5, tscache.CleanData))

		Expect(stateOf(0)).To(Equal(checkpoint.CleanExclusive))
	})

	It("should be shared if two cores read", func() {
		table.AbsorbLine(0, line(1, 5, tscache.CleanData))
		table.AbsorbLine(1, line(1, 6, tscache.CleanData))

		Expect(stateOf(0)).To(Equal(checkpoint.CleanShared))
		Expect(stateOf(1)).To(Equal(checkpoint.CleanShared))
	})

	It("should be owned if another core reads after the write", func() {
		table.AbsorbLine(0, line(1, 5, tscache.DirtyData))
		table.AbsorbLine(1, line(1, 6, tscache.CleanData))

		Expect(stateOf(0)).To(Equal(checkpoint.ModifiedOwned))
		Expect(stateOf(1)).To(Equal(checkpoint.CleanShared))
	})

	It("should invalidate readers older than the write", func() {
		table.AbsorbLine(0, line(1, 7, tscache.DirtyData))
		table.AbsorbLine(1, line(1, 6, tscache.CleanData))

		Expect(stateOf(0)).To(Equal(checkpoint.ModifiedExclusive))
		Expect(stateOf(1)).To(Equal(checkpoint.Invalid))
	})

	It("should report invalidated copies", func() {
		table.AbsorbLine(0, line(1, 7, tscache.CleanData))
		table.AbsorbLine(1, line(1, 3, tscache.Invalid))

		r, _ := table.Lookup(1)
		state, ts, held := r.StateOf(1)
		Expect(state).To(Equal(checkpoint.Invalid))
		Expect(ts).To(Equal(uint64(3)))
		Expect(held).To(BeTrue())
	})

	It("should not report cores that never saw the block", func() {
		table.AbsorbLine(0, line(1, 7, tscache.DirtyData))

		r, _ := table.Lookup(1)
		_, _, held := r.StateOf(1)
		Expect(held).To(BeFalse())
	})

	It("should list the replicas read after the write", func() {
		table.AbsorbLine(0, line(1, 10, tscache.DirtyData))
		table.AbsorbLine(3, line(1, 12, tscache.CleanData))
		table.AbsorbLine(1, line(1, 5, tscache.CleanData))
		table.AbsorbLine(2, line(1, 12, tscache.CleanData))

		r, _ := table.Lookup(1)
		e := r.DirectoryEntry()
		Expect(e.BlockID).To(Equal(uint64(1)))
		Expect(e.Replicas).To(Equal([]int{2, 3}))
		Expect(*e.LastWriter).To(Equal(0))
	})

	It("should list all readers when nothing is written", func() {
		table.AbsorbLine(2, line(1, 10, tscache.CleanData))
		table.AbsorbLine(0, line(1, 5, tscache.CleanData))

		r, _ := table.Lookup(1)
		e := r.DirectoryEntry()
		Expect(e.Replicas).To(Equal([]int{0, 2}))
		Expect(e.LastWriter).To(BeNil())
	})

	DescribeTable("joining permissions",
		func(a, b, expected Permission, ok bool) {
			p, joined := a.join(b)
			Expect(joined).To(Equal(ok))

			if ok {
				Expect(p).To(Equal(expected))
			}
		},
		Entry("none", PermissionNone, PermissionCleanData,
			PermissionCleanData, true),
		Entry("same", PermissionInstruction, PermissionInstruction,
			PermissionInstruction, true),
		Entry("instruction and data", PermissionCleanData,
			PermissionInstruction, PermissionInstructionAndCleanData, true),
		Entry("clean and dirty", PermissionCleanData, PermissionDirtyData,
			PermissionDirtyData, true),
		Entry("instruction and dirty", PermissionInstruction,
			PermissionDirtyData, PermissionNone, false),
		Entry("dirty and both", PermissionDirtyData,
			PermissionInstructionAndCleanData, PermissionNone, false),
	)
})
