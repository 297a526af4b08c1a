package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running session's status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := targetClient()
		if err != nil {
			return err
		}
		st, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut || jqExpr != "" {
			return cli.Output(st, outputOptions())
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-14s %s\n", "name", st.Name)
		fmt.Fprintf(w, "%-14s %s\n", "voice", st.Voice)
		fmt.Fprintf(w, "%-14s %d (pid %d)\n", "port", st.Port, st.PID)
		fmt.Fprintf(w, "%-14s %s\n", "uptime", cli.FormatAge(st.UptimeS))
		fmt.Fprintf(w, "%-14s %v\n", "mcp connected", st.MCPConnected)
		fmt.Fprintf(w, "%-14s %s\n", "wake", st.WakeState)
		fmt.Fprintf(w, "%-14s speak=%v listen=%v\n", "capabilities", st.CanSpeak, st.CanListen)
		if st.Muted {
			fmt.Fprintf(w, "%-14s muted\n", "microphone")
		}
		if st.LastToolAgeS >= 0 {
			fmt.Fprintf(w, "%-14s %s ago\n", "last tool call", cli.FormatAge(st.LastToolAgeS))
		}
		return nil
	},
}

func init() {
	addNameFlag(statusCmd)
	addOutputFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}
