package provider

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
)

// OpenAI-shaped wire types, shared by the OpenAI, Grok, Mercury and
// OpenRouter providers.

type chatMessage struct {
	Role             string         `json:"role"`
	Content          *string        `json:"content,omitempty"`
	Name             *string        `json:"name,omitempty"`
	ToolCallID       *string        `json:"tool_call_id,omitempty"`
	ToolCalls        []chatToolCall `json:"tool_calls,omitempty"`
	ReasoningContent *string        `json:"reasoning_content,omitempty"`
	Reasoning        *string        `json:"reasoning,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

// Arguments is a JSON string on the way out. On the way in, providers send
// either a string or an object, so it stays raw until decoded.
type chatFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type namedFunction struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

func forceFunction(name string) namedFunction {
	nf := namedFunction{Type: "function"}
	nf.Function.Name = name
	return nf
}

// outgoingMessages converts history to the OpenAI wire shape. Tool-call
// arguments are sent as JSON strings and assistant tool-call messages
// always carry a content field.
func outgoingMessages(msgs []llm.Message, keepToolName bool) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := chatMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == llm.RoleTool && !keepToolName {
			cm.Name = nil
		}
		if len(m.ToolCalls) > 0 {
			if cm.Content == nil {
				cm.Content = llm.String("")
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Function.ArgumentsJSON())
				cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: chatFunction{Name: tc.Function.Name, Arguments: args},
				})
			}
		}
		out = append(out, cm)
	}
	return out
}

// incomingMessage normalizes a decoded OpenAI-shaped message. Missing tool
// call ids are generated as idPrefix + uuid.
func incomingMessage(w chatMessage, idPrefix string) llm.Message {
	m := llm.Message{
		Role:             w.Role,
		Content:          w.Content,
		Name:             w.Name,
		ToolCallID:       w.ToolCallID,
		ReasoningContent: w.ReasoningContent,
	}
	if m.Role == "" {
		m.Role = llm.RoleAssistant
	}
	if m.ReasoningContent == nil && w.Reasoning != nil {
		m.ReasoningContent = w.Reasoning
	}
	for _, tc := range w.ToolCalls {
		id := tc.ID
		if id == "" {
			id = idPrefix + uuid.NewString()
		}
		m.ToolCalls = append(m.ToolCalls, llm.NewToolCall(id, tc.Function.Name, llm.DecodeArguments(tc.Function.Arguments)))
	}
	if len(m.ToolCalls) > 0 && m.Content == nil {
		m.Content = llm.String("")
	}
	return m
}

// payloadFromCompletion builds the normalized payload and prices its usage.
func payloadFromCompletion(c chatCompletion, idPrefix string, inputPrice, outputPrice float64) *llm.ResponsePayload {
	p := &llm.ResponsePayload{
		ID:      c.ID,
		Object:  c.Object,
		Created: c.Created,
		Model:   c.Model,
	}
	if p.Object == "" {
		p.Object = "chat.completion"
	}
	if p.Created == 0 {
		p.Created = time.Now().Unix()
	}
	for _, ch := range c.Choices {
		p.Choices = append(p.Choices, llm.Choice{Message: incomingMessage(ch.Message, idPrefix)})
	}
	if c.Usage != nil {
		u := llm.Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}
		if u.TotalTokens == 0 {
			u.TotalTokens = u.PromptTokens + u.CompletionTokens
		}
		u.CalculateCost(inputPrice, outputPrice)
		p.Usage = &u
	}
	return p
}

// applyThinkTags moves a <think> block from the content into the reasoning.
// With keepNative set, an existing reasoning value wins and the content is
// left alone.
func applyThinkTags(p *llm.ResponsePayload, keepNative bool) {
	for i := range p.Choices {
		m := &p.Choices[i].Message
		if m.Content == nil || (keepNative && m.ReasoningContent != nil) {
			continue
		}
		rest, reasoning := extractThinking(*m.Content)
		if reasoning != nil {
			m.Content = llm.String(rest)
			m.ReasoningContent = reasoning
		}
	}
}

func decodeCompletion(raw []byte, provider string) (chatCompletion, error) {
	var c chatCompletion
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, llm.ParseError("failed to parse %s response: %v", provider, err)
	}
	return c, nil
}
