package lucky

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/llmcore/internal/llm"
)

var (
	fencedJSON = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*\\})\\s*```")
	quotedKey  = regexp.MustCompile(`"([^"]+)"\s*:`)
)

// ParseResponse extracts the JSON object from raw model text, strips the
// delimiter characters from its keys, validates it against shape and
// returns the coerced and polished value. Every failure wraps llm.ErrParse.
func ParseResponse(raw string, shape any, delim string) (any, error) {
	text, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	delimChar := "#"
	if delim != "" {
		r, _ := utf8.DecodeRuneInString(delim)
		delimChar = string(r)
	}
	cleaned := quotedKey.ReplaceAllStringFunc(text, func(match string) string {
		key := quotedKey.FindStringSubmatch(match)[1]
		return `"` + strings.ReplaceAll(key, delimChar, "") + `":`
	})

	value, err := decode(cleaned)
	if err != nil {
		return nil, llm.ParseError("failed to parse cleaned JSON: %v. Raw response: %s", err, raw)
	}

	coerced, err := validate(value, shape)
	if err != nil {
		return nil, llm.ParseError("JSON has incorrect structure: %v", err)
	}
	return Polish(coerced), nil
}

// extractJSON prefers a fenced json block and falls back to the span from
// the first '{' to the last '}'.
func extractJSON(raw string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", llm.ParseError("could not find a valid JSON object in the response: %s", raw)
	}
	return raw[start : end+1], nil
}

func decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON object")
	}
	return v, nil
}

// validate checks value against the unwrapped template and returns value
// with each leaf coerced to its hinted type.
func validate(value, format any) (any, error) {
	switch f := format.(type) {
	case map[string]any:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %s", describe(value))
		}
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			out[k] = v
		}
		for key, child := range f {
			v, ok := obj[key]
			if !ok {
				return nil, fmt.Errorf("missing key: %s", key)
			}
			c, err := validate(v, child)
			if err != nil {
				return nil, err
			}
			out[key] = c
		}
		return out, nil
	case []any:
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %s", describe(value))
		}
		out := make([]any, len(arr))
		copy(out, arr)
		if len(f) == 0 {
			return out, nil
		}
		for i, item := range arr {
			c, err := validate(item, f[0])
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case string:
		return coerce(value, f)
	default:
		return nil, errors.New("invalid format shape in the template")
	}
}

// coerce converts a leaf according to a hint such as "<type:int>",
// "<type:enum([\"a\",\"b\"])>" or "<type:code:python>". Hints without a
// "type:" prefix, unknown types and str accept the value unchanged. The
// quote-trimmed text is only used to read scalars and enum members.
func coerce(value any, hint string) (any, error) {
	text := leafText(value)
	clean := strings.TrimSpace(text)
	clean = strings.Trim(clean, `"`)
	clean = strings.Trim(clean, `'`)
	clean = strings.TrimSpace(clean)

	h := strings.TrimSpace(hint)
	h = strings.TrimLeft(h, "<")
	h = strings.TrimRight(h, ">")
	typ, ok := strings.CutPrefix(h, "type:")
	if !ok {
		return value, nil
	}
	typ = strings.TrimSpace(typ)

	switch {
	case strings.HasPrefix(typ, "code"):
		lang := ""
		if rest, ok := strings.CutPrefix(typ, "code:"); ok {
			lang = rest
		}
		return cleanCodeBlock(text, lang), nil
	case strings.HasPrefix(typ, "enum"):
		return coerceEnum(value, clean, typ)
	}

	switch typ {
	case "int":
		i, err := parseInt(clean)
		if err != nil {
			return nil, err
		}
		return i, nil
	case "float":
		f, err := parseFloat(clean)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "bool":
		b, err := parseBool(clean)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return value, nil
	}
}

func coerceEnum(value any, clean, typ string) (any, error) {
	inner := strings.TrimSpace(strings.TrimPrefix(typ, "enum"))
	inner, ok := strings.CutPrefix(inner, "(")
	if ok {
		inner, ok = strings.CutSuffix(strings.TrimSpace(inner), ")")
	}
	if !ok {
		return nil, errors.New("invalid enum format, expected enum([...])")
	}

	allowed, err := decode(inner)
	if err != nil {
		return nil, errors.New("enum values are not a valid JSON array")
	}
	list, ok := allowed.([]any)
	if !ok {
		return nil, errors.New("enum values are not a valid JSON array")
	}

	candidates := []any{value}
	if s, isStr := value.(string); isStr {
		if v, err := decode(s); err == nil {
			candidates = append(candidates, v)
		}
		candidates = append(candidates, clean)
	}
	for _, c := range candidates {
		for _, a := range list {
			if reflect.DeepEqual(c, a) {
				return a, nil
			}
		}
	}
	return nil, fmt.Errorf("field value %s is not one of the allowed enum values: %s", leafText(value), inner)
}

// leafText renders a leaf as text: strings verbatim, anything else as JSON.
func leafText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func describe(v any) string {
	s := leafText(v)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
