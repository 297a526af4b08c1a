package cli

import (
	"strings"
	"testing"
)

func TestOutputJSON(t *testing.T) {
	var b strings.Builder
	err := Output(map[string]any{"name": "Eric", "port": 7865},
		OutputOptions{Format: FormatJSON, Writer: &b})
	if err != nil {
		t.Fatalf("Output() = %v", err)
	}
	if !strings.Contains(b.String(), `"name": "Eric"`) {
		t.Errorf("output = %q, want indented JSON", b.String())
	}
}

func TestOutputYAMLDefault(t *testing.T) {
	var b strings.Builder
	err := Output(map[string]any{"name": "Eric"}, OutputOptions{Writer: &b})
	if err != nil {
		t.Fatalf("Output() = %v", err)
	}
	if !strings.Contains(b.String(), "name: Eric") {
		t.Errorf("output = %q, want YAML", b.String())
	}
}

func TestOutputWithQuery(t *testing.T) {
	var b strings.Builder
	in := map[string]any{"sessions": []any{
		map[string]any{"name": "Eric", "port": 7865},
		map[string]any{"name": "Nova", "port": 7866},
	}}
	err := Output(in, OutputOptions{
		Format: FormatJSON,
		Query:  ".sessions[].name",
		Writer: &b,
	})
	if err != nil {
		t.Fatalf("Output() = %v", err)
	}
	out := b.String()
	if !strings.Contains(out, `"Eric"`) || !strings.Contains(out, `"Nova"`) {
		t.Errorf("output = %q, want both names", out)
	}
}

func TestApplyQueryBadExpression(t *testing.T) {
	if _, err := ApplyQuery(".[", map[string]any{}); err == nil {
		t.Fatal("ApplyQuery() = nil error for malformed expression")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{250, "250ms"},
		{1500, "1.5s"},
		{65000, "1m5s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestRenderTableAligns(t *testing.T) {
	out := RenderTable(
		[]string{"NAME", "PORT"},
		[][]string{{"Eric", "7865"}, {"Isabella", "7866"}},
	)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[2], "Isabella") {
		t.Errorf("row = %q, want Isabella", lines[2])
	}
}
