package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/cli"
	"github.com/shshalom/voicesmith-mcp/pkg/config"
	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
	"github.com/shshalom/voicesmith-mcp/pkg/session"
)

var (
	// Global flags
	verbose  bool
	jqExpr   string
	jsonOut  bool
	nameFlag string
)

var rootCmd = &cobra.Command{
	Use:   "voicesmith",
	Short: "Voice interface for AI coding agents",
	Long: `voicesmith - speak/listen tools for AI coding agents over MCP.

An agent launches 'voicesmith serve' as a child process and drives it
over stdio. Several sessions can run on one host: they share one
microphone through a yield/reclaim handshake and one voice registry
through a lock-protected sessions file.

The remaining commands are operator tools that talk to running sessions
over their loopback bridge.

Examples:
  # Speak through the session named Eric
  voicesmith speak --name Eric "Build finished."

  # See who is registered
  voicesmith sessions

  # Watch a session's wake-word activity
  voicesmith monitor --name Eric`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initLogging routes logs to stderr: stdout belongs to MCP when serving
// and to command output otherwise.
func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// addOutputFlags wires the shared --json/--jq flags onto data-emitting
// commands.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON instead of a table")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "filter JSON output with a jq expression")
}

func outputOptions() cli.OutputOptions {
	return cli.OutputOptions{Format: cli.FormatJSON, Query: jqExpr}
}

// loadConfig reads the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// liveSessions prunes the shared registry and returns the live entries.
func liveSessions() ([]session.Record, error) {
	path, err := session.DefaultPath()
	if err != nil {
		return nil, err
	}
	reg := session.NewRegistry(session.NewStore(path))
	return reg.ListActive()
}

// targetSession picks the session a one-shot command talks to: the one
// named by --name, or the only live one.
func targetSession() (session.Record, error) {
	recs, err := liveSessions()
	if err != nil {
		return session.Record{}, err
	}
	if len(recs) == 0 {
		return session.Record{}, fmt.Errorf("no live voicesmith sessions (is an agent running 'voicesmith serve'?)")
	}
	if nameFlag == "" {
		if len(recs) == 1 {
			return recs[0], nil
		}
		names := make([]string, len(recs))
		for i, r := range recs {
			names[i] = r.Name
		}
		return session.Record{}, fmt.Errorf("several sessions are live (%s); pick one with --name",
			strings.Join(names, ", "))
	}
	for _, r := range recs {
		if strings.EqualFold(r.Name, nameFlag) {
			return r, nil
		}
	}
	return session.Record{}, fmt.Errorf("no live session named %q", nameFlag)
}

// targetClient returns a bridge client for the chosen session.
func targetClient() (*daemon.Client, session.Record, error) {
	rec, err := targetSession()
	if err != nil {
		return nil, session.Record{}, err
	}
	return daemon.NewClient(rec.Port), rec, nil
}

func addNameFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&nameFlag, "name", "", "session name to target (default: the only live session)")
}
