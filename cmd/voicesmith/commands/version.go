package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicesmith %s (%s/%s, %s)\n",
			daemon.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
