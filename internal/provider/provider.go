// Package provider translates the normalized request/response model to and
// from each vendor's wire protocol.
//
// Dispatch is a closed set: For maps a registry provider name to one of the
// implementations in this package, and unknown names get an inert
// Unsupported provider instead of a lookup failure.
package provider

import (
	"fmt"
	"net/http"

	"github.com/kalambet/llmcore/internal/llm"
)

// Registry provider names.
const (
	NameOpenAI     = "OpenAI"
	NameAnthropic  = "Anthropic"
	NameGoogle     = "Google"
	NameXAI        = "xAI"
	NameInception  = "Inception Labs"
	NameOllama     = "Ollama"
	NameOpenRouter = "OpenRouter"
)

// ChatRequest is everything an adapter needs to shape one chat call.
type ChatRequest struct {
	ModelTag    string
	Messages    []llm.Message
	Temperature float64
	Schema      *llm.SimpleSchema
	Tools       []llm.ToolDefinition
	Thinking    bool
	Debug       bool
}

// ImageResult is the outcome of an image generation call. Either field may
// be empty.
type ImageResult struct {
	Text     string `json:"text,omitempty"`
	ImageB64 string `json:"image_b64,omitempty"`
}

// Adapter shapes outgoing requests for one provider and reports its
// per-model capabilities.
type Adapter interface {
	Name() string
	PrepareRequest(req ChatRequest) any
	RequestURL(baseURL, modelTag, apiKey string) string
	RequestHeaders(apiKey string) http.Header

	SupportsNativeSchema(modelTag string) bool
	SupportsTools(modelTag string) bool
	SupportsEmbeddings(modelTag string) bool

	PrepareEmbeddingRequest(modelTag string, texts []string) (any, error)
	EmbeddingURL(baseURL, modelTag, apiKey string) (string, error)
	PrepareImageRequest(prompt, modelTag string) (any, error)
	ImageURL(baseURL, modelTag, apiKey string) (string, error)
}

// Parser turns a provider's raw response into the normalized model.
type Parser interface {
	ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error)
	ParseImageResponse(raw []byte) (*ImageResult, error)
	ParseEmbeddingResponse(raw []byte) ([][]float32, error)
}

// Provider is an Adapter and its matching Parser.
type Provider interface {
	Adapter
	Parser
}

// For returns the provider registered under name.
func For(name string) Provider {
	switch name {
	case NameOpenAI:
		return OpenAI{}
	case NameAnthropic:
		return Anthropic{}
	case NameGoogle:
		return Gemini{}
	case NameXAI:
		return Grok{}
	case NameInception:
		return Mercury{}
	case NameOllama:
		return Ollama{}
	case NameOpenRouter:
		return OpenRouter{}
	default:
		return Unsupported{ProviderName: name}
	}
}

// optional supplies the "not supported" defaults for the optional
// operations. Providers embed it and override what they implement.
type optional struct{}

func (optional) SupportsEmbeddings(string) bool { return false }

func (optional) PrepareEmbeddingRequest(string, []string) (any, error) {
	return nil, fmt.Errorf("embeddings: %w", llm.ErrNotSupported)
}

func (optional) EmbeddingURL(string, string, string) (string, error) {
	return "", fmt.Errorf("embeddings: %w", llm.ErrNotSupported)
}

func (optional) PrepareImageRequest(string, string) (any, error) {
	return nil, fmt.Errorf("image generation: %w", llm.ErrNotSupported)
}

func (optional) ImageURL(string, string, string) (string, error) {
	return "", fmt.Errorf("image generation: %w", llm.ErrNotSupported)
}

func (optional) ParseImageResponse([]byte) (*ImageResult, error) {
	return nil, fmt.Errorf("image generation: %w", llm.ErrNotSupported)
}

func (optional) ParseEmbeddingResponse([]byte) ([][]float32, error) {
	return nil, fmt.Errorf("embeddings: %w", llm.ErrNotSupported)
}

func bearerHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	h.Set("Content-Type", "application/json")
	return h
}
