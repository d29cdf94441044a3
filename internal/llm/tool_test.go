package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{"object", `{"city":"Paris"}`, map[string]any{"city": "Paris"}},
		{"stringified object", `"{\"city\":\"Paris\"}"`, map[string]any{"city": "Paris"}},
		{"empty string", `""`, map[string]any{}},
		{"malformed string", `"{city"`, map[string]any{}},
		{"array", `[1,2]`, map[string]any{}},
		{"null", `null`, map[string]any{}},
		{"number", `3`, map[string]any{}},
		{"stringified array", `"[1]"`, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeArguments(json.RawMessage(tt.raw)))
		})
	}
	assert.Equal(t, map[string]any{}, DecodeArguments(nil))
}

func TestMessageCloneIsDeep(t *testing.T) {
	orig := Message{
		Role:      RoleAssistant,
		Content:   String("hi"),
		ToolCalls: []ToolCall{NewToolCall("1", "f", map[string]any{"a": 1})},
	}
	cp := orig.Clone()
	*cp.Content = "changed"
	cp.ToolCalls[0].Function.Arguments["a"] = 2

	assert.Equal(t, "hi", orig.Text())
	assert.Equal(t, 1, orig.ToolCalls[0].Function.Arguments["a"])
}

func TestSchemaAsTool(t *testing.T) {
	s := SimpleSchema{
		Name:        "person",
		Description: "a person",
		Properties: []SchemaProperty{
			{Name: "name", Type: "string", Description: "full name"},
			{Name: "tags", Type: "array", Description: "labels", Items: &SchemaItems{Type: "string"}},
		},
	}
	def := s.AsTool()
	assert.Equal(t, "function", def.Type)
	assert.Equal(t, "person", def.Function.Name)
	params := def.Function.Parameters
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"name", "tags"}, params["required"])
	props := params["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, props["tags"].(map[string]any)["items"])
}
