package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at link time with -ldflags "-X".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of cachewarm.",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("cachewarm %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
