package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks fatal configuration problems: unknown model, tools
	// combined with a schema, a missing secret.
	ErrConfig = errors.New("configuration error")

	// ErrParse marks malformed provider envelopes and failed structured
	// output extraction or validation.
	ErrParse = errors.New("failed to parse response from AI")

	// ErrRetriesExhausted is returned when every attempt of a call was
	// consumed without success.
	ErrRetriesExhausted = errors.New("API call exhausted all retries without success")

	// ErrNotSupported is returned by optional provider operations the
	// provider does not implement.
	ErrNotSupported = errors.New("operation not supported by provider")
)

// APIError is a non-success HTTP response that is not retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API call failed with status %d: %s", e.Status, e.Body)
}

// ConfigError formats an error wrapping ErrConfig.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// ParseError formats an error wrapping ErrParse.
func ParseError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
