package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/sarchlab/cachewarm/checkpoint"
)

const envPrefix = "CACHEWARM_"

// loadEnvFile loads environment variables from a dotenv file. Variables that
// are already set are kept. A missing file is not an error.
func loadEnvFile(path string) error {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}

func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// applyEnv sets the flags that are not given on the command line from the
// environment.
func applyEnv(flags *pflag.FlagSet) error {
	var errs []error

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}

		value, found := os.LookupEnv(envName(f.Name))
		if !found {
			return
		}

		err := flags.Set(f.Name, value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envName(f.Name), err))
		}
	})

	return errors.Join(errs...)
}

func addParamsFlags(flags *pflag.FlagSet) {
	d := checkpoint.DefaultParams()

	flags.Int("l1i-sets", d.Private.L1ISets, "Number of sets of the rendered L1I")
	flags.Int("l1i-ways", d.Private.L1IWays, "Associativity of the rendered L1I")
	flags.Int("l1d-sets", d.Private.L1DSets, "Number of sets of the rendered L1D")
	flags.Int("l1d-ways", d.Private.L1DWays, "Associativity of the rendered L1D")
	flags.Int("l2-sets", d.Private.L2Sets, "Number of sets of the rendered L2")
	flags.Int("l2-ways", d.Private.L2Ways, "Associativity of the rendered L2")
	flags.Int("shared-sets", d.Shared.Sets,
		"Number of sets of the rendered shared cache")
	flags.Int("shared-ways", d.Shared.Ways,
		"Associativity of the rendered shared cache")
	flags.Int("record-buckets", d.RecordBuckets,
		"Number of buckets of the coherence record table")
	flags.Int("directory-ways", d.DirectoryWays,
		"Records kept per directory set, 0 keeps all")
}

func paramsFromFlags(flags *pflag.FlagSet) (checkpoint.Params, error) {
	var (
		p    checkpoint.Params
		errs []error
	)

	get := func(name string, dst *int) {
		v, err := flags.GetInt(name)
		if err != nil {
			errs = append(errs, err)
		}

		*dst = v
	}

	get("l1i-sets", &p.Private.L1ISets)
	get("l1i-ways", &p.Private.L1IWays)
	get("l1d-sets", &p.Private.L1DSets)
	get("l1d-ways", &p.Private.L1DWays)
	get("l2-sets", &p.Private.L2Sets)
	get("l2-ways", &p.Private.L2Ways)
	get("shared-sets", &p.Shared.Sets)
	get("shared-ways", &p.Shared.Ways)
	get("record-buckets", &p.RecordBuckets)
	get("directory-ways", &p.DirectoryWays)

	if len(errs) > 0 {
		return p, errors.Join(errs...)
	}

	return p, p.Validate()
}
