package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
)

var smokeListen bool

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Self-test a running session: one speak round, optionally one listen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, rec, err := targetClient()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()

		st, err := client.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		fmt.Fprintf(w, "session %s: ready=%v speak=%v listen=%v\n",
			rec.Name, st.Ready, st.CanSpeak, st.CanListen)

		if !st.CanSpeak {
			cli.PrintError("speech unavailable, skipping speak round")
		} else {
			res, err := client.Speak(cmd.Context(), daemon.SpeakParams{
				Text:  fmt.Sprintf("Voicesmith check. This is %s.", rec.Name),
				Block: true,
			})
			if err != nil {
				return fmt.Errorf("speak: %w", err)
			}
			if !res.Success {
				cli.PrintError("speak failed: %s", res.Error)
			} else {
				cli.PrintSuccess("spoke %s of audio via %s",
					cli.FormatDuration(res.DurationMs), res.Voice)
			}
		}

		if !smokeListen {
			return nil
		}
		if !st.CanListen {
			cli.PrintError("transcription unavailable, skipping listen round")
			return nil
		}
		fmt.Fprintln(w, "say something...")
		lr, err := client.Listen(cmd.Context(), daemon.ListenParams{TimeoutS: 10})
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		if !lr.Success {
			cli.PrintError("listen failed: %s", lr.Error)
			return nil
		}
		cli.PrintSuccess("heard: %q (confidence %.2f)", lr.Text, lr.Confidence)
		return nil
	},
}

func init() {
	smokeCmd.Flags().BoolVar(&smokeListen, "listen", false, "also run a listen round")
	addNameFlag(smokeCmd)
	rootCmd.AddCommand(smokeCmd)
}
