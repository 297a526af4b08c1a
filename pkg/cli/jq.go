package cli

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// ApplyQuery runs a jq expression over result and collects every value
// the program emits. The input is normalized through JSON first so
// struct results behave like the documents jq users expect.
func ApplyQuery(expr string, result any) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cli: parse query %q: %w", expr, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("cli: encode for query: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cli: decode for query: %w", err)
	}

	var out []any
	iter := query.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("cli: query: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
