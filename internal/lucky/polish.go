package lucky

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Polish walks v and promotes every string that reads as an integer, a
// float or a boolean into that JSON type. Models quote numbers and
// booleans inconsistently; this undoes it.
func Polish(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = Polish(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = Polish(child)
		}
		return out
	case string:
		if i, err := parseInt(t); err == nil {
			return i
		}
		if f, err := parseFloat(t); err == nil {
			return f
		}
		if b, err := parseBool(t); err == nil {
			return b
		}
		return t
	default:
		return v
	}
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// parseFloat accepts finite decimal floats only.
func parseFloat(s string) (float64, error) {
	digits := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, errors.New("hexadecimal float")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.New("non-finite float")
	}
	return f, nil
}

// parseBool accepts the literals true and false only.
func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.New("not a boolean literal")
}
