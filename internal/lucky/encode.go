package lucky

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Canonical encodes v as compact JSON without HTML escaping, so type hints
// and extracted code keep their angle brackets and ampersands.
func Canonical(v any) (string, error) {
	return encode(v, "")
}

func encode(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
