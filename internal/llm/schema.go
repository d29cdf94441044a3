package llm

// SimpleSchema is a reduced schema description used both for provider-native
// structured output and as the source shape for the delimiter fallback.
type SimpleSchema struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Properties  []SchemaProperty `json:"properties"`
}

// SchemaProperty is a single field of a SimpleSchema.
type SchemaProperty struct {
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Items       *SchemaItems `json:"items,omitempty"`
}

// SchemaItems is the element type of an array property.
type SchemaItems struct {
	Type string `json:"type"`
}

// JSONSchema renders s as a JSON Schema object with every property required.
func (s SimpleSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	required := make([]any, 0, len(s.Properties))
	for _, p := range s.Properties {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Items != nil {
			prop["items"] = map[string]any{"type": p.Items.Type}
		}
		props[p.Name] = prop
		required = append(required, p.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// AsTool expresses s as a single function tool whose arguments are the
// structured result.
func (s SimpleSchema) AsTool() ToolDefinition {
	return NewToolDefinition(s.Name, s.Description, s.JSONSchema())
}
