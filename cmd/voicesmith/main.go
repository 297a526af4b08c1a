// Package main is the entry point for the voicesmith CLI.
//
// Usage:
//
//	voicesmith [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the MCP voice server (launched by an agent)
//	speak      - Speak text through a running session
//	listen     - Capture and transcribe through a running session
//	sessions   - List live sessions in the shared registry
//	status     - Probe the liveness bridge of running sessions
//	voices     - Show the voice catalog and assignments
//	devices    - List audio devices
//	monitor    - Follow a session's live event feed
//	config     - Inspect and initialize configuration
//	smoke      - End-to-end self test against a running session
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/shshalom/voicesmith-mcp/cmd/voicesmith/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
