// Package lucky implements the delimiter protocol used to obtain structured
// JSON from models that have no native tool or schema support.
//
// A shape is a JSON template tree built from map[string]any, []any and
// string leaves holding type hints such as "<type:int>". Keys are wrapped in
// delimiters whose repetition count encodes nesting depth, which makes the
// expected keys hard for a model to paraphrase.
package lucky

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

// DefaultDelimiter wraps keys in the prompt template.
const DefaultDelimiter = "###"

// WrapKeys returns a copy of shape with every object key at depth d wrapped
// in d repetitions of delim, and every string leaf turned into a single
// angle-bracketed hint.
func WrapKeys(shape any, delim string, depth int) any {
	switch v := shape.(type) {
	case map[string]any:
		cur := strings.Repeat(delim, depth)
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[cur+k+cur] = WrapKeys(child, delim, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = WrapKeys(child, delim, depth+1)
		}
		return out
	case string:
		hint := strings.ReplaceAll(v, "list", "array")
		return "<" + strings.Trim(hint, "<>") + ">"
	default:
		return v
	}
}

// PreparePrompt augments the system prompt with the JSON-mode instructions
// for shape. When tools is non-empty a tool-calling section listing them is
// prepended. In synthesis mode the model is told to answer in prose from the
// tool output and the JSON instructions are omitted. The user prompt is
// returned unchanged.
func PreparePrompt(system, user string, shape any, delim string, tools []llm.ToolDefinition, synthesis bool) (string, string) {
	var b strings.Builder
	if len(tools) > 0 {
		writeToolSection(&b, tools, synthesis)
	}
	if !synthesis {
		writeJSONSection(&b, shape, delim)
	}
	b.WriteString(system)
	return b.String(), user
}

func writeToolSection(b *strings.Builder, tools []llm.ToolDefinition, synthesis bool) {
	b.WriteString("#### **DUAL MODE: TOOL CALLING & SYNTHESIS**\n\n")
	b.WriteString("You work in exactly one of two modes:\n")
	b.WriteString("1.  **Tool Calling Mode:** when a tool can answer the user's request, your ONLY output is a JSON object that calls that tool, following the 'JSON SCHEMA' below.\n")
	b.WriteString("2.  **Synthesis Mode:** when the last message in the conversation comes from a 'tool', your ONLY task is a conversational, human-readable answer built from that tool output. Do NOT output JSON in this mode and do not refuse or apologize.\n\n")
	mode := "TOOL CALLING"
	if synthesis {
		b.WriteString("**CURRENT CONTEXT:** The last message is from a tool: **Yes**.\n")
		mode = "SYNTHESIS"
	}
	b.WriteString(mode)
	b.WriteString("\n**Available Tools (Tool Calling Mode only):**\n")
	for i, t := range tools {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "- `%s`: %s", t.Function.Name, t.Function.Description)
	}
	b.WriteString("\n\n")
}

func writeJSONSection(b *strings.Builder, shape any, delim string) {
	schema, err := encode(WrapKeys(shape, delim, 1), "  ")
	if err != nil {
		schema = "{}"
	}

	var keys []string
	if obj, ok := shape.(map[string]any); ok {
		for k := range obj {
			keys = append(keys, fmt.Sprintf("'%s%s%s'", delim, k, delim))
		}
		sort.Strings(keys)
	}

	fmt.Fprintf(b, "### **JSON MODE** Instructions\n\n")
	fmt.Fprintf(b, "You are a machine that outputs one valid JSON object. Add no text, explanation or markdown.\n\n")
	fmt.Fprintf(b, "DELIMITER = '%s' (repeat count exactly as in the schema).\n\n", delim)
	fmt.Fprintf(b, "#### Formatting rules\n")
	fmt.Fprintf(b, "1. The reply starts with '{' and ends with '}'. No markdown and no ``` fences.\n")
	fmt.Fprintf(b, "2. Use every key exactly as shown in the schema, including both delimiter halves (for example '%[1]skey%[1]s').\n", delim)
	fmt.Fprintf(b, "3. The delimited keys are programmatic identifiers. Never rename, shorten or invent keys, and never use 'answer' as a key unless the schema shows it.\n")
	fmt.Fprintf(b, "4. Replace each placeholder such as '<type:str>' with a plain value. Remove every < and > character.\n")
	fmt.Fprintf(b, "5. These delimited keys must be present: %s.\n", strings.Join(keys, ", "))
	fmt.Fprintf(b, "6. Close every array and object, and fill every placeholder with real values taken from the input.\n")
	fmt.Fprintf(b, "7. For arrays, emit one element per distinct item found in the input.\n\n")
	fmt.Fprintf(b, "#### Output pattern\n")
	fmt.Fprintf(b, "{\"%[1]sprovided_key%[1]s\": \"output_value\"}\n", delim)
	fmt.Fprintf(b, "- Values are bare literals: \"blue\" for a string, 42 for a number, true for a boolean.\n")
	fmt.Fprintf(b, "- Never use values from the input as keys, never add keys, arrays or nesting the schema does not show.\n")
	fmt.Fprintf(b, "- Never put code, calls, tags or angle brackets inside values.\n\n")
	fmt.Fprintf(b, "#### **JSON SCHEMA:**\n")
	fmt.Fprintf(b, "The object you output must follow this schema:\n")
	fmt.Fprintf(b, "```json\n%s\n```", schema)
}
