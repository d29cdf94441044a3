package provider

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

var grokReasoners = map[string]bool{"grok-3-mini": true}

// Grok speaks xAI's OpenAI-compatible API. Tools win over a schema when both
// are present.
type Grok struct{ optional }

type grokRequest struct {
	Model           string               `json:"model"`
	Messages        []chatMessage        `json:"messages"`
	Temperature     float64              `json:"temperature"`
	ReasoningEffort string               `json:"reasoning_effort,omitempty"`
	Tools           []llm.ToolDefinition `json:"tools,omitempty"`
	ToolChoice      any                  `json:"tool_choice,omitempty"`
}

func (Grok) Name() string { return NameXAI }

func (Grok) PrepareRequest(req ChatRequest) any {
	body := grokRequest{
		Model:       req.ModelTag,
		Messages:    outgoingMessages(req.Messages, true),
		Temperature: req.Temperature,
	}
	if req.Thinking && grokReasoners[req.ModelTag] {
		body.ReasoningEffort = "high"
	}
	switch {
	case len(req.Tools) > 0:
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	case req.Schema != nil:
		body.Tools = []llm.ToolDefinition{req.Schema.AsTool()}
		body.ToolChoice = forceFunction(req.Schema.Name)
	}
	return body
}

func (Grok) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (Grok) RequestHeaders(apiKey string) http.Header { return bearerHeaders(apiKey) }

func (Grok) SupportsNativeSchema(string) bool { return true }
func (Grok) SupportsTools(string) bool        { return true }

func (Grok) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	// choices may be null, and so may its entries.
	var resp struct {
		chatCompletion
		Choices []*chatChoice `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse xAI response: %v", err)
	}
	c := resp.chatCompletion
	c.Choices = nil
	for _, ch := range resp.Choices {
		if ch != nil {
			c.Choices = append(c.Choices, *ch)
		}
	}
	p := payloadFromCompletion(c, "grok-tool-", inputPrice, outputPrice)
	applyThinkTags(p, true)
	if p.Model == "" {
		p.Model = modelName
	}
	return p, nil
}
