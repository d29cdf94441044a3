package engine

import (
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/tools"
)

// toolStrategy is how tools reach the model: natively in the request, via
// the delimiter protocol, or not at all.
type toolStrategy interface{ isToolStrategy() }

type (
	payloadTools struct{ lib *tools.Library }
	luckyTools   struct {
		lib   *tools.Library
		shape map[string]any
	}
	noTools struct{}
)

func (payloadTools) isToolStrategy() {}
func (luckyTools) isToolStrategy()   {}
func (noTools) isToolStrategy()      {}

// structuredStrategy is how a schema is enforced.
type structuredStrategy interface{ isStructuredStrategy() }

type (
	nativeSchema struct{ schema llm.SimpleSchema }
	luckySchema  struct{ shape map[string]any }
	unstructured struct{}
)

func (nativeSchema) isStructuredStrategy() {}
func (luckySchema) isStructuredStrategy()  {}
func (unstructured) isStructuredStrategy() {}

// luckyToolShape is the object a model fills in to call a tool.
func luckyToolShape() map[string]any {
	return map[string]any{
		"tool_name": "<type:str>",
		"arguments": "<type:object>",
	}
}

// luckySchemaShape turns a schema into a delimiter-protocol template. Array
// properties become lists of strings.
func luckySchemaShape(s llm.SimpleSchema) map[string]any {
	shape := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		if p.Type == "array" {
			shape[p.Name] = []any{"<type:string>"}
			continue
		}
		shape[p.Name] = "<type:" + p.Type + ">"
	}
	return shape
}

// resolveStrategies picks the tool and structured-output strategies once per
// engine from the provider's native capabilities.
func resolveStrategies(nativeTools, nativeSchemaSupport bool, lib *tools.Library, schema *llm.SimpleSchema) (toolStrategy, structuredStrategy, error) {
	if lib != nil && schema != nil {
		return nil, nil, llm.ConfigError("Unsupported configuration: Cannot provide both a tool library and a schema simultaneously. To enforce a structured output, please define it as a single tool in the tool library.")
	}

	var ts toolStrategy = noTools{}
	if lib != nil {
		if nativeTools {
			ts = payloadTools{lib: lib}
		} else {
			ts = luckyTools{lib: lib, shape: luckyToolShape()}
		}
	}

	var ss structuredStrategy = unstructured{}
	if schema != nil {
		if nativeSchemaSupport {
			ss = nativeSchema{schema: *schema}
		} else {
			ss = luckySchema{shape: luckySchemaShape(*schema)}
		}
	}
	return ts, ss, nil
}

func strategyName(v any) string {
	switch v.(type) {
	case payloadTools:
		return "payload"
	case luckyTools, luckySchema:
		return "lucky"
	case nativeSchema:
		return "schema"
	default:
		return "none"
	}
}
