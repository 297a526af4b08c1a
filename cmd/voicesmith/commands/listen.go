package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
)

var (
	listenTimeout float64
	listenSilence float64
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Record speech through a session and print the transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, rec, err := targetClient()
		if err != nil {
			return err
		}

		if !jsonOut && jqExpr == "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "listening via %s...\n", rec.Name)
		}
		res, err := client.Listen(cmd.Context(), daemon.ListenParams{
			TimeoutS: listenTimeout,
			SilenceS: listenSilence,
		})
		if err != nil {
			return err
		}
		if jsonOut || jqExpr != "" {
			return cli.Output(res, outputOptions())
		}
		if !res.Success {
			cli.PrintError("%s", res.Error)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}

func init() {
	listenCmd.Flags().Float64Var(&listenTimeout, "timeout", 0, "max recording seconds (default: configured)")
	listenCmd.Flags().Float64Var(&listenSilence, "silence", 0, "post-speech silence seconds that ends capture (default: configured)")
	addNameFlag(listenCmd)
	addOutputFlags(listenCmd)
	rootCmd.AddCommand(listenCmd)
}
