package entity

import (
	"bytes"
	"encoding/json"
)

// Tool is a capability a page exposes through its in-page tool API.
// Names are unique within one target only.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// InputSchema is the JSON schema as the page reported it, still encoded.
	InputSchema string `json:"inputSchema"`
}

// UnmarshalJSON also accepts an inputSchema sent as a JSON object and keeps
// its encoded text.
func (t *Tool) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Name = raw.Name
	t.Description = raw.Description
	t.InputSchema = ""

	schema := bytes.TrimSpace(raw.InputSchema)
	switch {
	case len(schema) == 0 || bytes.Equal(schema, []byte("null")):
	case schema[0] == '"':
		return json.Unmarshal(schema, &t.InputSchema)
	default:
		t.InputSchema = string(schema)
	}
	return nil
}

// ToolNames returns the names of tools in order.
func ToolNames(tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}
