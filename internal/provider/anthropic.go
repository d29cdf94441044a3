package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
	jsonSchemaDraft    = "http://json-schema.org/draft-2020-12/schema"
)

// Anthropic speaks the Messages API.
type Anthropic struct{ optional }

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []any           `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Tools       []anthropicTool `json:"tools,omitempty"`
	ToolChoice  map[string]any  `json:"tool_choice,omitempty"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

func (Anthropic) Name() string { return NameAnthropic }

func (Anthropic) PrepareRequest(req ChatRequest) any {
	body := anthropicRequest{
		Model:       req.ModelTag,
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		Messages:    []any{},
	}
	systemSeen := false
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			if !systemSeen {
				body.System = m.Text()
				systemSeen = true
			}
		case llm.RoleTool:
			body.Messages = append(body.Messages, map[string]any{
				"role": llm.RoleUser,
				"content": []anthropicBlock{{
					Type:      "tool_result",
					ToolUseID: derefString(m.ToolCallID),
					Content:   m.Text(),
				}},
			})
		case llm.RoleAssistant:
			if !m.HasToolCalls() {
				body.Messages = append(body.Messages, map[string]any{"role": m.Role, "content": m.Text()})
				continue
			}
			var blocks []anthropicBlock
			if m.Text() != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Text()})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: json.RawMessage(tc.Function.ArgumentsJSON()),
				})
			}
			body.Messages = append(body.Messages, map[string]any{"role": m.Role, "content": blocks})
		default:
			body.Messages = append(body.Messages, map[string]any{"role": m.Role, "content": m.Text()})
		}
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			body.Tools = append(body.Tools, anthropicTool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				InputSchema: withSchemaDraft(t.Function.Parameters),
			})
		}
	}
	if req.Schema != nil {
		body.Tools = []anthropicTool{{
			Name:        req.Schema.Name,
			Description: req.Schema.Description,
			InputSchema: withSchemaDraft(req.Schema.JSONSchema()),
		}}
		body.ToolChoice = map[string]any{"type": "tool", "name": req.Schema.Name}
	}
	return body
}

// withSchemaDraft copies params and declares the JSON Schema draft when
// params describe an object.
func withSchemaDraft(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	_, hasType := params["type"]
	_, hasProps := params["properties"]
	if hasType && hasProps {
		out["$schema"] = jsonSchemaDraft
	}
	return out
}

func (Anthropic) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/messages"
}

func (Anthropic) RequestHeaders(apiKey string) http.Header {
	h := http.Header{}
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", anthropicVersion)
	h.Set("Content-Type", "application/json")
	return h
}

func (Anthropic) SupportsNativeSchema(string) bool { return true }
func (Anthropic) SupportsTools(string) bool        { return true }

func (Anthropic) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	var resp struct {
		ID      string           `json:"id"`
		Model   string           `json:"model"`
		Content []anthropicBlock `json:"content"`
		Usage   *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Anthropic response: %v", err)
	}

	var text strings.Builder
	var calls []llm.ToolCall
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			calls = append(calls, llm.NewToolCall(b.ID, b.Name, llm.DecodeArguments(b.Input)))
		}
	}

	msg := llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
	content, reasoning := extractThinking(text.String())
	msg.ReasoningContent = reasoning
	if content != "" {
		msg.Content = llm.String(content)
	} else if len(calls) > 0 {
		msg.Content = llm.String("")
	}

	model := resp.Model
	if model == "" {
		model = modelName
	}
	p := &llm.ResponsePayload{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []llm.Choice{{Message: msg}},
	}
	if resp.Usage != nil {
		u := llm.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
		u.CalculateCost(inputPrice, outputPrice)
		p.Usage = &u
	}
	return p, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
