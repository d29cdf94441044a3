package llm

import (
	"encoding/json"
	"maps"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its arguments. Arguments is always
// an object once a parser has normalized it.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Clone returns a copy of c with its own argument map.
func (c ToolCall) Clone() ToolCall {
	out := c
	if c.Function.Arguments != nil {
		out.Function.Arguments = maps.Clone(c.Function.Arguments)
	}
	return out
}

// NewToolCall builds a function tool call, substituting an empty argument
// object for nil.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	if args == nil {
		args = map[string]any{}
	}
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: args}}
}

// ArgumentsJSON returns the arguments encoded as a JSON object string.
func (f FunctionCall) ArgumentsJSON() string {
	if f.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(f.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeArguments normalizes a raw argument value into an object. Providers
// send arguments either as a JSON object or as a string holding JSON; any
// other shape, or a malformed string, yields an empty object.
func DecodeArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return ArgumentsFromValue(v)
}

// ArgumentsFromValue is DecodeArguments for an already decoded value.
func ArgumentsFromValue(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var inner any
		if err := json.Unmarshal([]byte(t), &inner); err != nil {
			return map[string]any{}
		}
		if obj, ok := inner.(map[string]any); ok {
			return obj
		}
	}
	return map[string]any{}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the callable part of a ToolDefinition. Parameters is
// a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}
