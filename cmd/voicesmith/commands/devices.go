package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/portaudio"
	"github.com/shshalom/voicesmith-mcp/pkg/cli"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices known to the host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devs, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("enumerate devices: %w", err)
		}
		defer func() { _ = portaudio.Terminate() }()

		if jsonOut || jqExpr != "" {
			return cli.Output(devs, outputOptions())
		}

		rows := make([][]string, 0, len(devs))
		for _, d := range devs {
			mark := ""
			if d.IsDefaultInput {
				mark += "in"
			}
			if d.IsDefaultOutput {
				if mark != "" {
					mark += ","
				}
				mark += "out"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", d.Index),
				d.Name,
				fmt.Sprintf("%d", d.MaxInputChannels),
				fmt.Sprintf("%d", d.MaxOutputChannels),
				fmt.Sprintf("%.0f", d.DefaultSampleRate),
				mark,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
			[]string{"#", "NAME", "IN", "OUT", "RATE", "DEFAULT"}, rows))
		return nil
	},
}

func init() {
	addOutputFlags(devicesCmd)
	rootCmd.AddCommand(devicesCmd)
}
