package provider

import (
	"net/http"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

var mercuryToolModels = map[string]bool{"mercury-coder": true}

// Mercury speaks Inception Labs' OpenAI-compatible API. Its schema support is
// unreliable, so structured output always goes through the delimiter
// fallback.
type Mercury struct{ optional }

type mercuryRequest struct {
	Model       string               `json:"model"`
	Messages    []chatMessage        `json:"messages"`
	Temperature float64              `json:"temperature"`
	Tools       []llm.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string               `json:"tool_choice,omitempty"`
}

func (Mercury) Name() string { return NameInception }

func (Mercury) PrepareRequest(req ChatRequest) any {
	body := mercuryRequest{
		Model:       req.ModelTag,
		Messages:    outgoingMessages(req.Messages, false),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	}
	return body
}

func (Mercury) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (Mercury) RequestHeaders(apiKey string) http.Header { return bearerHeaders(apiKey) }

func (Mercury) SupportsNativeSchema(string) bool { return false }

func (Mercury) SupportsTools(modelTag string) bool { return mercuryToolModels[modelTag] }

func (Mercury) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	c, err := decodeCompletion(raw, NameInception)
	if err != nil {
		return nil, err
	}
	p := payloadFromCompletion(c, "mercury-tool-", inputPrice, outputPrice)
	applyThinkTags(p, false)
	if p.Model == "" {
		p.Model = modelName
	}
	return p, nil
}
