package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voice catalog and current assignments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		assigned := map[string]string{} // voice id -> session name
		if recs, err := liveSessions(); err == nil {
			for _, r := range recs {
				assigned[r.Voice] = r.Name
			}
		}

		if jsonOut || jqExpr != "" {
			type entry struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				Gender     string `json:"gender"`
				Accent     string `json:"accent"`
				AssignedTo string `json:"assigned_to,omitempty"`
			}
			out := make([]entry, 0, len(voice.Catalog))
			for _, v := range voice.Catalog {
				out = append(out, entry{v.ID, v.Name(), v.Gender, v.Accent, assigned[v.ID]})
			}
			return cli.Output(out, outputOptions())
		}

		rows := make([][]string, 0, len(voice.Catalog))
		for _, v := range voice.Catalog {
			rows = append(rows, []string{v.ID, v.Name(), v.Gender, v.Accent, assigned[v.ID]})
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
			[]string{"ID", "NAME", "GENDER", "ACCENT", "IN USE BY"}, rows))
		return nil
	},
}

func init() {
	addOutputFlags(voicesCmd)
	rootCmd.AddCommand(voicesCmd)
}
