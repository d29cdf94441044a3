package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
)

// ToolCallMarker prefixes tool calls that Granite models emit as plain
// content.
const ToolCallMarker = "<|tool_call|>"

const (
	graniteSystemPrompt = "You have access to the following tools. When a tool is required to answer the user's query, respond only with <|tool_call|> followed by a JSON list of tools used. If a tool does not exist in the provided list of tools, notify the user that you do not have the ability to fulfill the request."
	ollamaToolPrompt    = "You are a helpful assistant with access to tools. Use them when appropriate to answer the user's request."
)

var (
	graniteToolModels = map[string]bool{"granite3.3:2b": true}
	ollamaThinkModels = map[string]bool{"qwen3:0.6b": true, "deepseek-r1:free": true}
	ollamaToolModels  = map[string]bool{"qwen3:0.6b": true, "llama3.2:1b": true}
)

// Ollama speaks the local /api/chat endpoint.
type Ollama struct{ optional }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	Think       *bool   `json:"think,omitempty"`
}

type ollamaRequest struct {
	Model      string               `json:"model"`
	Messages   []any                `json:"messages"`
	Stream     bool                 `json:"stream"`
	Options    ollamaOptions        `json:"options"`
	Format     string               `json:"format,omitempty"`
	Tools      []llm.ToolDefinition `json:"tools,omitempty"`
	ToolChoice string               `json:"tool_choice,omitempty"`
}

type graniteTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Arguments   map[string]any `json:"arguments"`
}

func (Ollama) Name() string { return NameOllama }

func (o Ollama) PrepareRequest(req ChatRequest) any {
	tag := strings.ToLower(req.ModelTag)
	body := ollamaRequest{
		Model:   req.ModelTag,
		Options: ollamaOptions{Temperature: req.Temperature},
	}
	if ollamaThinkModels[tag] {
		think := req.Thinking
		body.Options.Think = &think
	}

	if graniteToolModels[tag] {
		body.Messages = graniteMessages(req)
		return body
	}

	msgs := llm.CloneMessages(req.Messages)
	if ollamaToolModels[tag] {
		if req.Schema != nil || len(req.Tools) > 0 {
			msgs = prependToolPrompt(msgs)
		}
		switch {
		case req.Schema != nil:
			body.Tools = []llm.ToolDefinition{req.Schema.AsTool()}
			body.ToolChoice = "required"
		case len(req.Tools) > 0:
			body.Tools = req.Tools
			body.ToolChoice = "required"
		}
	} else {
		body.Tools = req.Tools
		if req.Schema != nil {
			body.Format = "json"
		}
	}
	for _, m := range msgs {
		body.Messages = append(body.Messages, m)
	}
	return body
}

func prependToolPrompt(msgs []llm.Message) []llm.Message {
	for i, m := range msgs {
		if m.Role == llm.RoleSystem {
			if m.Content != nil {
				msgs[i].Content = llm.String(ollamaToolPrompt + "\n\n---\n\n" + *m.Content)
			}
			return msgs
		}
	}
	return append([]llm.Message{llm.SystemMessage(ollamaToolPrompt)}, msgs...)
}

// graniteMessages builds the Granite conversation: its tool system prompt,
// an available_tools message, then the history without system messages.
func graniteMessages(req ChatRequest) []any {
	var system string
	var rest []any
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system = m.Text()
			continue
		}
		rest = append(rest, m)
	}

	var tools []graniteTool
	switch {
	case req.Schema != nil:
		args := make(map[string]any, len(req.Schema.Properties))
		for _, p := range req.Schema.Properties {
			args[p.Name] = map[string]any{"description": p.Description}
		}
		tools = []graniteTool{{Name: req.Schema.Name, Description: req.Schema.Description, Arguments: args}}
	case len(req.Tools) > 0:
		for _, t := range req.Tools {
			tools = append(tools, graniteTool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Arguments:   simplifyParams(t.Function.Parameters),
			})
		}
	}

	prompt := graniteSystemPrompt
	if system != "" {
		prompt += "\n\n" + system
	}
	out := []any{map[string]string{"role": llm.RoleSystem, "content": prompt}}
	if tools != nil {
		encoded, _ := json.Marshal(tools)
		out = append(out, map[string]string{"role": "available_tools", "content": string(encoded)})
	}
	return append(out, rest...)
}

// simplifyParams reduces a JSON Schema to Granite's {arg: {description}} form.
func simplifyParams(params map[string]any) map[string]any {
	props, ok := params["properties"].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for name, v := range props {
		desc := any("")
		if pm, ok := v.(map[string]any); ok {
			if d, ok := pm["description"]; ok {
				desc = d
			}
		}
		out[name] = map[string]any{"description": desc}
	}
	return out
}

func (Ollama) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/api/chat"
}

func (Ollama) RequestHeaders(string) http.Header { return http.Header{} }

// Granite's schema output is unreliable, so only the standard tool models
// get native schema support.
func (Ollama) SupportsNativeSchema(modelTag string) bool {
	return ollamaToolModels[strings.ToLower(modelTag)]
}

func (Ollama) SupportsTools(modelTag string) bool {
	tag := strings.ToLower(modelTag)
	return graniteToolModels[tag] || ollamaToolModels[tag]
}

func (Ollama) SupportsEmbeddings(string) bool { return true }

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (Ollama) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	var resp struct {
		Model     string `json:"model"`
		CreatedAt string `json:"created_at"`
		Message   struct {
			Role      string           `json:"role"`
			Content   *string          `json:"content"`
			ToolCalls []ollamaToolCall `json:"tool_calls"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Ollama response: %v", err)
	}

	content := resp.Message.Content
	calls := resp.Message.ToolCalls
	if content != nil {
		trimmed := strings.TrimSpace(*content)
		if strings.HasPrefix(trimmed, ToolCallMarker) {
			if i := strings.Index(trimmed, "["); i >= 0 {
				var parsed []ollamaToolCall
				if err := json.Unmarshal([]byte(trimmed[i:]), &parsed); err == nil {
					calls = parsed
					content = nil
				}
			}
		}
	}

	msg := llm.Message{Role: resp.Message.Role}
	if msg.Role == "" {
		msg.Role = llm.RoleAssistant
	}
	if content != nil {
		rest, reasoning := extractThinking(*content)
		msg.Content = llm.String(rest)
		msg.ReasoningContent = reasoning
	}
	for _, c := range calls {
		msg.ToolCalls = append(msg.ToolCalls,
			llm.NewToolCall("ollama-tool-"+uuid.NewString(), c.Function.Name, llm.DecodeArguments(c.Function.Arguments)))
	}
	// Content next to tool calls is chatter.
	if msg.HasToolCalls() {
		msg.Content = llm.String("")
	}

	created := time.Now().Unix()
	if t, err := time.Parse(time.RFC3339Nano, resp.CreatedAt); err == nil {
		created = t.Unix()
	}
	model := resp.Model
	if model == "" {
		model = modelName
	}
	u := llm.Usage{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	u.CalculateCost(inputPrice, outputPrice)

	return &llm.ResponsePayload{
		ID:      "ollama-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []llm.Choice{{Message: msg}},
		Usage:   &u,
	}, nil
}

func (Ollama) PrepareEmbeddingRequest(modelTag string, texts []string) (any, error) {
	return map[string]any{"model": modelTag, "input": texts}, nil
}

func (Ollama) EmbeddingURL(baseURL, _, _ string) (string, error) {
	return strings.TrimRight(baseURL, "/") + "/api/embed", nil
}

func (Ollama) ParseEmbeddingResponse(raw []byte) ([][]float32, error) {
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Ollama embedding response: %v", err)
	}
	return resp.Embeddings, nil
}
