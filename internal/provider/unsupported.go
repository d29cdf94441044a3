package provider

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

// Unsupported stands in for providers with no adapter. Requests get a generic
// OpenAI-shaped body and responses are rejected.
type Unsupported struct {
	optional
	ProviderName string
}

func (u Unsupported) Name() string { return u.ProviderName }

func (u Unsupported) PrepareRequest(req ChatRequest) any {
	if len(req.Tools) > 0 {
		slog.Warn("tools ignored for unsupported provider", "provider", u.ProviderName)
	}
	slog.Warn("using generic payload for unsupported provider", "provider", u.ProviderName)
	return map[string]any{
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
}

func (Unsupported) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (Unsupported) RequestHeaders(apiKey string) http.Header { return bearerHeaders(apiKey) }

func (Unsupported) SupportsNativeSchema(string) bool { return false }
func (Unsupported) SupportsTools(string) bool        { return false }

func (u Unsupported) ParseResponse(raw []byte, _ string, _, _ float64) (*llm.ResponsePayload, error) {
	return nil, llm.ConfigError("provider '%s' is not supported; raw response: %s", u.ProviderName, string(raw))
}
