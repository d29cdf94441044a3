// Package llm holds the provider-neutral data model shared by every part of
// the orchestration engine: messages, tool calls, schemas, usage and the
// normalized response payload.
package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation entry. It follows the OpenAI chat shape,
// which every provider adapter translates to and from.
type Message struct {
	Role             string     `json:"role"`
	Content          *string    `json:"content,omitempty"`
	Name             *string    `json:"name,omitempty"`
	ToolCallID       *string    `json:"tool_call_id,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	ReasoningContent *string    `json:"reasoning_content,omitempty"`
}

// Text returns the message content or "" when it is absent.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasToolCalls reports whether the message carries at least one tool call.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a deep copy of m, so that callers can rewrite the copy
// without touching the caller-owned history.
func (m Message) Clone() Message {
	out := m
	out.Content = cloneString(m.Content)
	out.Name = cloneString(m.Name)
	out.ToolCallID = cloneString(m.ToolCallID)
	out.ReasoningContent = cloneString(m.ReasoningContent)
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c.Clone()
		}
	}
	return out
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// SystemMessage builds a message with the system role.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: String(content)}
}

// UserMessage builds a message with the user role.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: String(content)}
}

// AssistantMessage builds a message with the assistant role.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: String(content)}
}

// ToolMessage builds the result message for the tool call identified by id.
func ToolMessage(content, toolCallID, name string) Message {
	return Message{
		Role:       RoleTool,
		Content:    String(content),
		Name:       String(name),
		ToolCallID: String(toolCallID),
	}
}

// Choice is one candidate completion.
type Choice struct {
	Message Message `json:"message"`
}

// ResponsePayload is the normalized result of one provider call.
type ResponsePayload struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// FirstMessage returns the message of the first choice.
func (p *ResponsePayload) FirstMessage() (Message, bool) {
	if p == nil || len(p.Choices) == 0 {
		return Message{}, false
	}
	return p.Choices[0].Message, true
}
