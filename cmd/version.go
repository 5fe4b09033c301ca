package cmd

import (
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tnrpipe.",
	Long: `Display version information including build details.

Useful when reporting problems with a dataset, since packaged metadata
records the packager version but not the binary that produced it.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("tnrpipe CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
	},
}
