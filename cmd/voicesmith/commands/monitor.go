package commands

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream a session's live events (wake, speak, listen)",
	Long: `Monitor subscribes to a running session's websocket event feed and
prints each event as it happens. Ctrl-C stops it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, rec, err := targetClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.WSURL(), nil)
		if err != nil {
			return fmt.Errorf("connect to %s: %w", rec.Name, err)
		}
		defer conn.Close()

		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (port %d), Ctrl-C to stop\n", rec.Name, rec.Port)

		// The read loop blocks in ReadMessage; close the connection on
		// cancellation to unblock it.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("event feed closed: %w", err)
			}
			printEvent(cmd, msg)
		}
	},
}

func printEvent(cmd *cobra.Command, msg []byte) {
	if jsonOut {
		fmt.Fprintln(cmd.OutOrStdout(), string(msg))
		return
	}
	var ev daemon.BridgeEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(msg))
		return
	}

	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ev.Data[k]))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %-7s %s\n",
		ev.Time.Format("15:04:05"), ev.Kind, strings.Join(parts, " "))
}

func init() {
	monitorCmd.Flags().BoolVar(&jsonOut, "json", false, "print raw event JSON")
	addNameFlag(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}
