package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("capsulectl version %s\n", internal.CurrentVersion)
		fmt.Printf("  built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if internal.Commit != "" {
			fmt.Printf("  commit %s\n", internal.Commit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
