package toolsource

import (
	"encoding/json"
	"fmt"

	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
)

// decodeToolList parses a JSON-encoded tool array as pages send it.
func decodeToolList(payload string) ([]entity.Tool, error) {
	var tools []entity.Tool
	if err := json.Unmarshal([]byte(payload), &tools); err != nil {
		return nil, fmt.Errorf("decode tool list: %w", err)
	}
	if tools == nil {
		tools = []entity.Tool{}
	}
	return tools, nil
}

// valueString unwraps a by-value evaluation result. Strings are returned
// unquoted, any other JSON value as its encoded text. undefined and null
// report false.
func valueString(res *output.EvaluateResult) (*string, bool) {
	if res == nil || len(res.Value) == 0 || string(res.Value) == "null" {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(res.Value, &s); err == nil {
		return &s, true
	}
	raw := string(res.Value)
	return &raw, true
}

func exceptionMessage(details *output.ExceptionDetails) string {
	switch {
	case details.Description != "":
		return details.Description
	case details.Text != "":
		return details.Text
	default:
		return fallbackExecutionMessage
	}
}
