// Package cli carries the terminal plumbing shared by voicesmith
// commands: structured output in JSON or YAML with optional jq-style
// filtering, styled tables, and small formatting helpers.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how a result is rendered.
type OutputFormat string

const (
	// FormatJSON renders indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML renders YAML (the default).
	FormatYAML OutputFormat = "yaml"
)

// OutputOptions configures Output.
type OutputOptions struct {
	// Format is the output format; empty means YAML.
	Format OutputFormat
	// Query is a jq expression applied to the result first.
	Query string
	// Writer overrides the destination (default stdout).
	Writer io.Writer
}

// Output renders result to the configured destination. With a Query the
// result is passed through the jq program and each produced value is
// rendered in sequence.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	values := []any{result}
	if opts.Query != "" {
		filtered, err := ApplyQuery(opts.Query, result)
		if err != nil {
			return err
		}
		values = filtered
	}

	for _, v := range values {
		var err error
		switch opts.Format {
		case FormatJSON:
			err = outputJSON(w, v)
		case FormatYAML, "":
			err = outputYAML(w, v)
		default:
			err = fmt.Errorf("cli: unsupported output format %q", opts.Format)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("cli: format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintError writes an error line to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// PrintSuccess writes a confirmation line to stdout.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}
