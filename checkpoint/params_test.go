package checkpoint

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Params", func() {
	var (
		params Params
	)

	BeforeEach(func() {
		params = DefaultParams()
	})

	It("should accept the default parameters", func() {
		Expect(params.Validate()).To(Succeed())
		Expect(params.MustValidate).NotTo(Panic())
	})

	It("should refuse a set count that is not a power of 2", func() {
		params.Private.L2Sets = 1000

		Expect(params.Validate()).To(MatchError(ContainSubstring("L2 set count")))
		Expect(params.MustValidate).To(Panic())
	})

	It("should refuse zero associativity", func() {
		params.Private.L1DWays = 0

		Expect(params.Validate()).To(MatchError(ContainSubstring("L1D associativity")))
	})

	It("should refuse an L1 larger than the L2", func() {
		params.Private.L1ISets = 4096

		Expect(params.Validate()).To(MatchError(ContainSubstring("does not divide")))
	})

	It("should refuse an L2 with more sets than record buckets", func() {
		params.Private.L2Sets = 4096

		Expect(params.Validate()).To(MatchError(ContainSubstring("record bucket")))
	})

	It("should refuse a shared cache with more sets than record buckets", func() {
		params.Shared.Sets = 4096

		Expect(params.Validate()).To(MatchError(ContainSubstring("shared cache")))
	})

	It("should refuse a record bucket count that is not a power of 2", func() {
		params.RecordBuckets = 3000

		Expect(params.Validate()).To(HaveOccurred())
	})

	It("should report all problems at once", func() {
		params.Private.L1IWays = 0
		params.Shared.Ways = 0

		err := params.Validate()

		Expect(err).To(MatchError(ContainSubstring("L1I")))
		Expect(err).To(MatchError(ContainSubstring("shared cache")))
	})
})
