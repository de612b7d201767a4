// Package cmd provides the command-line interface for cachewarm.
package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "cachewarm",
	Short: "cachewarm rebuilds the cache state of a multi-core machine from " +
		"memory traces.",
	Long: `cachewarm replays memory access traces through per-core cache ` +
		`models and renders a checkpoint of the private caches, the ` +
		`directory and the shared cache. The checkpoint seeds a full-system ` +
		`simulator without a warm-up run.

Every flag can also be set with an environment variable named CACHEWARM_ ` +
		`followed by the flag name in upper case, with dashes replaced by ` +
		`underscores. Variables are also read from a .env file in the working ` +
		`directory.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		err := loadEnvFile(".env")
		if err != nil {
			log.Fatalf("Error loading .env: %v", err)
		}

		err = applyEnv(cmd.Flags())
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
