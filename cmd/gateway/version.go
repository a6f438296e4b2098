package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the gateway's version, commit, and build environment.

The same information is served on GET /version while the gateway is
running, so deployed binaries can be identified without shell access.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gateway %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		fmt.Printf("  %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
