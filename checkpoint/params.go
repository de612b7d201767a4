package checkpoint

import (
	"errors"
	"fmt"
)

// PrivateCacheParams describes the private levels of each core in the
// simulator that loads the checkpoint.
type PrivateCacheParams struct {
	L1ISets int `json:"l1i_sets"`
	L1IWays int `json:"l1i_ways"`
	L1DSets int `json:"l1d_sets"`
	L1DWays int `json:"l1d_ways"`
	L2Sets  int `json:"l2_sets"`
	L2Ways  int `json:"l2_ways"`
}

// SharedCacheParams describes the shared last level cache.
type SharedCacheParams struct {
	Sets int `json:"sets"`
	Ways int `json:"ways"`
}

// Params are all the parameters of a rendering pass.
type Params struct {
	Private PrivateCacheParams `json:"private"`
	Shared  SharedCacheParams  `json:"shared"`

	// RecordBuckets is the number of buckets of the coherence record table.
	RecordBuckets int `json:"record_buckets"`

	// DirectoryWays bounds the number of records kept per bucket. Zero keeps
	// all of them.
	DirectoryWays int `json:"directory_ways"`
}

// DefaultParams returns a 32KB 8-way L1I and L1D, a 2MB 16-way L2 and a 2MB
// 16-way shared cache, assuming 64B lines.
func DefaultParams() Params {
	return Params{
		Private: PrivateCacheParams{
			L1ISets: 64,
			L1IWays: 8,
			L1DSets: 64,
			L1DWays: 8,
			L2Sets:  2048,
			L2Ways:  16,
		},
		Shared: SharedCacheParams{
			Sets: 2048,
			Ways: 16,
		},
		RecordBuckets: 2048,
		DirectoryWays: 0,
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func checkLevel(name string, sets, ways int) error {
	if !isPowerOfTwo(sets) {
		return fmt.Errorf("%s set count %d is not a power of 2", name, sets)
	}

	if ways <= 0 {
		return fmt.Errorf("%s associativity must be larger than 0", name)
	}

	return nil
}

func checkDivides(inner string, n int, outer string, m int) error {
	if m%n != 0 {
		return fmt.Errorf("%s set count %d does not divide %s count %d",
			inner, n, outer, m)
	}

	return nil
}

// Validate checks the parameters and returns every problem found.
func (p PrivateCacheParams) Validate() error {
	errs := []error{
		checkLevel("L1I", p.L1ISets, p.L1IWays),
		checkLevel("L1D", p.L1DSets, p.L1DWays),
		checkLevel("L2", p.L2Sets, p.L2Ways),
	}

	if isPowerOfTwo(p.L1ISets) && isPowerOfTwo(p.L2Sets) {
		errs = append(errs, checkDivides("L1I", p.L1ISets, "L2 set", p.L2Sets))
	}

	if isPowerOfTwo(p.L1DSets) && isPowerOfTwo(p.L2Sets) {
		errs = append(errs, checkDivides("L1D", p.L1DSets, "L2 set", p.L2Sets))
	}

	return errors.Join(errs...)
}

// Validate checks the parameters and returns every problem found.
func (p Params) Validate() error {
	errs := []error{
		p.Private.Validate(),
		checkLevel("shared cache", p.Shared.Sets, p.Shared.Ways),
	}

	if !isPowerOfTwo(p.RecordBuckets) {
		errs = append(errs, fmt.Errorf(
			"record bucket count %d is not a power of 2", p.RecordBuckets))
	} else {
		if isPowerOfTwo(p.Private.L2Sets) {
			errs = append(errs, checkDivides(
				"L2", p.Private.L2Sets, "record bucket", p.RecordBuckets))
		}

		if isPowerOfTwo(p.Shared.Sets) {
			errs = append(errs, checkDivides(
				"shared cache", p.Shared.Sets, "record bucket", p.RecordBuckets))
		}
	}

	if p.DirectoryWays < 0 {
		errs = append(errs, fmt.Errorf(
			"directory associativity %d is negative", p.DirectoryWays))
	}

	return errors.Join(errs...)
}

// MustValidate panics if the parameters are not valid.
func (p Params) MustValidate() {
	err := p.Validate()
	if err != nil {
		panic(err)
	}
}
