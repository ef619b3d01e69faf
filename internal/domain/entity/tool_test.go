package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolUnmarshalSchemaForms(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		schema string
	}{
		{name: "encoded string", input: `{"name":"a","inputSchema":"{\"type\":\"object\"}"}`, schema: `{"type":"object"}`},
		{name: "object", input: `{"name":"a","inputSchema":{"type":"object"}}`, schema: `{"type":"object"}`},
		{name: "missing", input: `{"name":"a"}`, schema: ""},
		{name: "null", input: `{"name":"a","inputSchema":null}`, schema: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tool Tool
			require.NoError(t, json.Unmarshal([]byte(tt.input), &tool))
			assert.Equal(t, "a", tool.Name)
			assert.Equal(t, tt.schema, tool.InputSchema)
		})
	}
}

func TestToolUnmarshalRejectsNonObject(t *testing.T) {
	var tool Tool
	assert.Error(t, json.Unmarshal([]byte(`"search"`), &tool))
}

func TestToolMarshalKeepsEncodedSchema(t *testing.T) {
	data, err := json.Marshal(Tool{Name: "a", Description: "d", InputSchema: `{"type":"object"}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a","description":"d","inputSchema":"{\"type\":\"object\"}"}`, string(data))
}

func TestToolNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ToolNames([]Tool{{Name: "a"}, {Name: "b"}}))
	assert.Empty(t, ToolNames(nil))
}

func TestTargetInfoIsPage(t *testing.T) {
	assert.True(t, TargetInfo{Type: TargetTypePage}.IsPage())
	assert.False(t, TargetInfo{Type: TargetTypeServiceWorker}.IsPage())
}
