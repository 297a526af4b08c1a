package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shshalom/voicesmith-mcp/pkg/daemon"
	"github.com/shshalom/voicesmith-mcp/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP voice server",
	Long: `Run the voicesmith daemon: register a session identity, serve MCP
tools over stdio, expose the liveness bridge over HTTP, and (if enabled)
run the wake-word loop. This is the command an AI agent configures as
its MCP server; it exits when the agent disconnects or on SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		level := parseLevel(cfg.LogLevel)
		if verbose {
			level = slog.LevelDebug
		}
		// stdout carries the MCP stream; logs go to stderr and,
		// optionally, a file next to the session registry.
		var logDst io.Writer = os.Stderr
		if cfg.LogFile {
			if f, err := openLogFile(); err == nil {
				logDst = io.MultiWriter(os.Stderr, f)
				defer f.Close()
			}
		}
		log := slog.New(slog.NewTextHandler(logDst, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(log)

		d, err := daemon.New(cfg, log)
		if err != nil {
			return err
		}
		return d.Run(context.Background())
	},
}

func openLogFile() (*os.File, error) {
	sessions, err := session.DefaultPath()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(sessions), "voicesmith.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
