package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions from the shared registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := liveSessions()
		if err != nil {
			return err
		}
		if jsonOut || jqExpr != "" {
			return cli.Output(recs, outputOptions())
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no live sessions")
			return nil
		}

		rows := make([][]string, 0, len(recs))
		for _, r := range recs {
			sid := "-"
			if r.SessionID != nil && *r.SessionID != "" {
				sid = *r.SessionID
			}
			tmux := "-"
			if r.HasTerminal() {
				tmux = *r.TmuxSession
			}
			rows = append(rows, []string{
				r.Name,
				r.Voice,
				fmt.Sprintf("%d", r.Port),
				fmt.Sprintf("%d", r.PID),
				cli.FormatAge(time.Since(r.StartedAt).Seconds()),
				sid,
				tmux,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
			[]string{"NAME", "VOICE", "PORT", "PID", "UPTIME", "SESSION ID", "TMUX"}, rows))
		return nil
	},
}

func init() {
	addOutputFlags(sessionsCmd)
	rootCmd.AddCommand(sessionsCmd)
}
