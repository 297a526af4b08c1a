package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
)

var (
	speakVoice string
	speakSpeed float64
	speakQueue bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [text...]",
	Short: "Speak text through a running session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, rec, err := targetClient()
		if err != nil {
			return err
		}

		res, err := client.Speak(cmd.Context(), daemon.SpeakParams{
			Text:  strings.Join(args, " "),
			Voice: speakVoice,
			Speed: speakSpeed,
			Block: !speakQueue,
		})
		if err != nil {
			return err
		}
		if jsonOut || jqExpr != "" {
			return cli.Output(res, outputOptions())
		}
		switch {
		case res.Queued:
			cli.PrintSuccess("queued on %s", rec.Name)
		case res.Success:
			cli.PrintSuccess("spoke via %s in %s (synthesis %s)",
				res.Voice, cli.FormatDuration(res.DurationMs), cli.FormatDuration(res.SynthesisMs))
		default:
			cli.PrintError("%s", res.Error)
		}
		return nil
	},
}

func init() {
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "voice id or display name (default: session voice)")
	speakCmd.Flags().Float64Var(&speakSpeed, "speed", 0, "speed multiplier (default: configured)")
	speakCmd.Flags().BoolVar(&speakQueue, "queue", false, "return immediately instead of waiting for playback")
	addNameFlag(speakCmd)
	addOutputFlags(speakCmd)
	rootCmd.AddCommand(speakCmd)
}
