package provider

import (
	"net/http"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

// OpenRouter speaks OpenRouter's OpenAI-compatible API. Schemas go through
// response_format rather than a forced tool.
type OpenRouter struct{ optional }

type openRouterRequest struct {
	Model          string               `json:"model"`
	Messages       []chatMessage        `json:"messages"`
	Temperature    float64              `json:"temperature"`
	Tools          []llm.ToolDefinition `json:"tools,omitempty"`
	ToolChoice     string               `json:"tool_choice,omitempty"`
	ResponseFormat map[string]any       `json:"response_format,omitempty"`
}

func (OpenRouter) Name() string { return NameOpenRouter }

func (OpenRouter) PrepareRequest(req ChatRequest) any {
	body := openRouterRequest{
		Model:       req.ModelTag,
		Messages:    outgoingMessages(req.Messages, true),
		Temperature: req.Temperature,
	}
	switch {
	case len(req.Tools) > 0:
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	case req.Schema != nil:
		body.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Schema.Name,
				"schema": req.Schema.JSONSchema(),
			},
		}
	}
	return body
}

func (OpenRouter) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (OpenRouter) RequestHeaders(apiKey string) http.Header {
	h := bearerHeaders(apiKey)
	h.Set("HTTP-Referer", "https://github.com/kalambet/llmcore")
	h.Set("X-Title", "llmcore")
	return h
}

func (OpenRouter) SupportsNativeSchema(string) bool { return true }
func (OpenRouter) SupportsTools(string) bool        { return true }

func (OpenRouter) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	c, err := decodeCompletion(raw, NameOpenRouter)
	if err != nil {
		return nil, err
	}
	p := payloadFromCompletion(c, "openrouter-tool-", inputPrice, outputPrice)
	applyThinkTags(p, false)
	for i := range p.Choices {
		m := &p.Choices[i].Message
		if m.ReasoningContent != nil {
			if r := strings.TrimSpace(*m.ReasoningContent); r != "" {
				m.ReasoningContent = llm.String(r)
			} else {
				m.ReasoningContent = nil
			}
		}
	}
	if p.Model == "" {
		p.Model = modelName
	}
	return p, nil
}
