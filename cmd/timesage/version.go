package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the timesage version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("timesage %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
