package provider

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/llmcore/internal/llm"
)

// encodeBody renders an adapter body to a generic JSON tree for assertions.
func encodeBody(t *testing.T, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func weatherTool() llm.ToolDefinition {
	return llm.NewToolDefinition("get_weather", "Weather for a city", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string", "description": "City name"},
		},
		"required": []any{"city"},
	})
}

func personSchema() *llm.SimpleSchema {
	return &llm.SimpleSchema{
		Name:        "person",
		Description: "A person",
		Properties: []llm.SchemaProperty{
			{Name: "name", Type: "string", Description: "Full name"},
			{Name: "tags", Type: "array", Description: "Tags", Items: &llm.SchemaItems{Type: "string"}},
		},
	}
}

func toolHistory() []llm.Message {
	assistant := llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{llm.NewToolCall("call_1", "get_weather", map[string]any{"city": "Paris"})},
	}
	return []llm.Message{
		llm.SystemMessage("be brief"),
		llm.UserMessage("weather in Paris?"),
		assistant,
		llm.ToolMessage(`{"temp":21}`, "call_1", "get_weather"),
	}
}

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{NameOpenAI, NameOpenAI},
		{NameAnthropic, NameAnthropic},
		{NameGoogle, NameGoogle},
		{NameXAI, NameXAI},
		{NameInception, NameInception},
		{NameOllama, NameOllama},
		{NameOpenRouter, NameOpenRouter},
		{"Cohere", "Cohere"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, For(tt.name).Name())
	}
	_, ok := For("Cohere").(Unsupported)
	assert.True(t, ok)
}

func TestExtractThinking(t *testing.T) {
	content, reasoning := extractThinking("<THINK> step one </think>\n  Answer")
	require.NotNil(t, reasoning)
	assert.Equal(t, "step one", *reasoning)
	assert.Equal(t, "Answer", content)

	content, reasoning = extractThinking("plain")
	assert.Nil(t, reasoning)
	assert.Equal(t, "plain", content)
}

func TestOpenAIPrepareRequest(t *testing.T) {
	p := OpenAI{}

	body := encodeBody(t, p.PrepareRequest(ChatRequest{
		ModelTag:    "gpt-4o",
		Messages:    toolHistory(),
		Temperature: 0.7,
		Tools:       []llm.ToolDefinition{weatherTool()},
	}))
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, "auto", body["tool_choice"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	assistant := msgs[2].(map[string]any)
	assert.Equal(t, "", assistant["content"])
	call := assistant["tool_calls"].([]any)[0].(map[string]any)
	args := call["function"].(map[string]any)["arguments"]
	assert.Equal(t, `{"city":"Paris"}`, args, "arguments are sent as a JSON string")

	body = encodeBody(t, p.PrepareRequest(ChatRequest{ModelTag: "gpt-4o", Messages: toolHistory()[:2], Schema: personSchema()}))
	choice := body["tool_choice"].(map[string]any)
	assert.Equal(t, "function", choice["type"])
	assert.Equal(t, "person", choice["function"].(map[string]any)["name"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	params := tools[0].(map[string]any)["function"].(map[string]any)["parameters"].(map[string]any)
	assert.ElementsMatch(t, []any{"name", "tags"}, params["required"])
}

func TestOpenAIParseResponse(t *testing.T) {
	raw := `{"id":"chatcmpl-1","object":"chat.completion","created":1700000000,"model":"gpt-4o",
		"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_9","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}},
			{"id":"call_10","type":"function","function":{"name":"get_weather","arguments":"not json"}}]}}],
		"usage":{"prompt_tokens":1000000,"completion_tokens":500000,"total_tokens":1500000}}`

	p, err := OpenAI{}.ParseResponse([]byte(raw), "gpt-4o", 2, 8)
	require.NoError(t, err)
	require.Len(t, p.Choices, 1)
	msg := p.Choices[0].Message
	require.NotNil(t, msg.Content)
	assert.Equal(t, "", *msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_9", msg.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"city": "Oslo"}, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, map[string]any{}, msg.ToolCalls[1].Function.Arguments)

	require.NotNil(t, p.Usage)
	require.NotNil(t, p.Usage.Cost)
	assert.InDelta(t, 6.0, p.Usage.Cost.Total, 1e-9)
}

func TestParseMalformedEnvelope(t *testing.T) {
	providers := []Provider{OpenAI{}, Anthropic{}, Gemini{}, Grok{}, Mercury{}, Ollama{}, OpenRouter{}}
	for _, p := range providers {
		_, err := p.ParseResponse([]byte("<html>bad gateway</html>"), "m", 0, 0)
		assert.ErrorIs(t, err, llm.ErrParse, p.Name())
	}
}

func TestOpenAIEmbeddingsAndImages(t *testing.T) {
	p := OpenAI{}
	assert.True(t, p.SupportsEmbeddings("text-embedding-3-small"))

	u, err := p.EmbeddingURL("https://api.openai.com/v1/", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/embeddings", u)

	vecs, err := p.ParseEmbeddingResponse([]byte(`{"data":[{"index":1,"embedding":[0.5]},{"index":0,"embedding":[0.25]}]}`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.25}, {0.5}}, vecs)

	img, err := p.ParseImageResponse([]byte(`{"data":[{"b64_json":"aGk=","revised_prompt":"a cat"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "aGk=", img.ImageB64)
	assert.Equal(t, "a cat", img.Text)
}

func TestAnthropicPrepareRequest(t *testing.T) {
	body := encodeBody(t, Anthropic{}.PrepareRequest(ChatRequest{
		ModelTag:    "claude-sonnet",
		Messages:    toolHistory(),
		Temperature: 0.2,
		Tools:       []llm.ToolDefinition{weatherTool()},
	}))
	assert.Equal(t, "be brief", body["system"])
	assert.EqualValues(t, 4096, body["max_tokens"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1].(map[string]any)
	blocks := assistant["content"].([]any)
	require.Len(t, blocks, 1, "empty text is not sent as a block")
	use := blocks[0].(map[string]any)
	assert.Equal(t, "tool_use", use["type"])
	assert.Equal(t, map[string]any{"city": "Paris"}, use["input"])

	result := msgs[2].(map[string]any)
	assert.Equal(t, "user", result["role"])
	block := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", block["type"])
	assert.Equal(t, "call_1", block["tool_use_id"])

	tool := body["tools"].([]any)[0].(map[string]any)
	assert.Equal(t, jsonSchemaDraft, tool["input_schema"].(map[string]any)["$schema"])
	assert.Nil(t, body["tool_choice"])
}

func TestAnthropicSchemaForcesTool(t *testing.T) {
	body := encodeBody(t, Anthropic{}.PrepareRequest(ChatRequest{
		ModelTag: "claude-sonnet",
		Messages: []llm.Message{llm.UserMessage("who?")},
		Schema:   personSchema(),
	}))
	assert.Equal(t, map[string]any{"type": "tool", "name": "person"}, body["tool_choice"])
	_, hasSystem := body["system"]
	assert.False(t, hasSystem)

	h := Anthropic{}.RequestHeaders("sk-ant")
	assert.Equal(t, "sk-ant", h.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", h.Get("anthropic-version"))
	assert.Equal(t, "https://api.anthropic.com/v1/messages", Anthropic{}.RequestURL("https://api.anthropic.com/v1/", "", ""))
}

func TestAnthropicParseResponse(t *testing.T) {
	raw := `{"id":"msg_1","model":"claude-sonnet","content":[
		{"type":"text","text":"<think>weigh it</think> Calling."},
		{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Rome"}}],
		"usage":{"input_tokens":10,"output_tokens":5}}`

	p, err := Anthropic{}.ParseResponse([]byte(raw), "claude", 0, 0)
	require.NoError(t, err)
	msg := p.Choices[0].Message
	assert.Equal(t, "Calling.", msg.Text())
	require.NotNil(t, msg.ReasoningContent)
	assert.Equal(t, "weigh it", *msg.ReasoningContent)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	assert.Equal(t, 15, p.Usage.TotalTokens)
	assert.Equal(t, "chat.completion", p.Object)
}

func TestGeminiPrepareRequest(t *testing.T) {
	hist := toolHistory()
	hist = append(hist, llm.ToolMessage("sunny", "call_2", "get_weather"))
	body := encodeBody(t, Gemini{}.PrepareRequest(ChatRequest{
		ModelTag:    "gemini-2.0-flash",
		Messages:    hist,
		Temperature: 0.5,
		Tools:       []llm.ToolDefinition{weatherTool()},
	}))

	sys := body["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "be brief", sys["text"])

	contents := body["contents"].([]any)
	require.Len(t, contents, 4)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])

	fr := contents[2].(map[string]any)["parts"].([]any)[0].(map[string]any)["functionResponse"].(map[string]any)
	assert.Equal(t, map[string]any{"temp": float64(21)}, fr["response"])
	fr = contents[3].(map[string]any)["parts"].([]any)[0].(map[string]any)["functionResponse"].(map[string]any)
	assert.Equal(t, map[string]any{"content": "sunny"}, fr["response"], "non-JSON results are wrapped")

	decls := body["tools"].([]any)[0].(map[string]any)["function_declarations"].([]any)
	assert.Equal(t, "get_weather", decls[0].(map[string]any)["name"])

	body = encodeBody(t, Gemini{}.PrepareRequest(ChatRequest{ModelTag: "g", Messages: hist[:2], Schema: personSchema()}))
	gen := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gen["response_mime_type"])
	assert.NotNil(t, gen["response_schema"])

	assert.Equal(t, "https://g.test/v1beta/models/gemini-2.0-flash:generateContent?key=abc",
		Gemini{}.RequestURL("https://g.test/v1beta/models/", "gemini-2.0-flash", "abc"))
	assert.Empty(t, Gemini{}.RequestHeaders("abc").Get("Authorization"))
}

func TestGeminiParseResponse(t *testing.T) {
	raw := `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"Lima"}}}]}}],
		"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":3,"totalTokenCount":10}}`
	p, err := Gemini{}.ParseResponse([]byte(raw), "gemini", 1, 1)
	require.NoError(t, err)
	msg := p.Choices[0].Message
	require.Len(t, msg.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(msg.ToolCalls[0].ID, "gemini-tool-"))
	assert.Equal(t, map[string]any{"city": "Lima"}, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 10, p.Usage.TotalTokens)

	_, err = Gemini{}.ParseResponse([]byte(`{"candidates":[]}`), "gemini", 0, 0)
	assert.ErrorIs(t, err, llm.ErrParse)

	img, err := Gemini{}.ParseImageResponse([]byte(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"iVBO"}}]}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "here", img.Text)
	assert.Equal(t, "iVBO", img.ImageB64)
}

func TestGrok(t *testing.T) {
	body := encodeBody(t, Grok{}.PrepareRequest(ChatRequest{ModelTag: "grok-3-mini", Thinking: true, Messages: []llm.Message{llm.UserMessage("hi")}}))
	assert.Equal(t, "high", body["reasoning_effort"])
	body = encodeBody(t, Grok{}.PrepareRequest(ChatRequest{ModelTag: "grok-3", Thinking: true, Messages: []llm.Message{llm.UserMessage("hi")}}))
	assert.Nil(t, body["reasoning_effort"])

	raw := `{"id":"x","object":"chat.completion","created":1,"model":"grok-3","choices":[null,
		{"message":{"role":"assistant","content":"<think>tags</think>done","reasoning_content":"native",
		"tool_calls":[{"function":{"name":"get_weather","arguments":{"city":"Kyiv"}}}]}}]}`
	p, err := Grok{}.ParseResponse([]byte(raw), "grok-3", 0, 0)
	require.NoError(t, err)
	require.Len(t, p.Choices, 1)
	msg := p.Choices[0].Message
	assert.Equal(t, "native", *msg.ReasoningContent)
	assert.True(t, strings.HasPrefix(msg.ToolCalls[0].ID, "grok-tool-"))
	assert.Equal(t, map[string]any{"city": "Kyiv"}, msg.ToolCalls[0].Function.Arguments)

	p, err = Grok{}.ParseResponse([]byte(`{"id":"x","object":"o","created":1,"model":"m","choices":null}`), "m", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, p.Choices)
}

func TestMercury(t *testing.T) {
	m := Mercury{}
	assert.False(t, m.SupportsNativeSchema("mercury-coder"))
	assert.True(t, m.SupportsTools("mercury-coder"))
	assert.False(t, m.SupportsTools("mercury"))

	body := encodeBody(t, m.PrepareRequest(ChatRequest{ModelTag: "mercury-coder", Messages: toolHistory()}))
	tool := body["messages"].([]any)[3].(map[string]any)
	_, hasName := tool["name"]
	assert.False(t, hasName, "tool messages are sent without a name")

	p, err := m.ParseResponse([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"mercury",
		"choices":[{"message":{"role":"assistant","content":"<think>hm</think>ok"}}]}`), "mercury", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", p.Choices[0].Message.Text())
	assert.Equal(t, "hm", *p.Choices[0].Message.ReasoningContent)
}

func TestOllamaPrepareRequest(t *testing.T) {
	o := Ollama{}
	body := encodeBody(t, o.PrepareRequest(ChatRequest{
		ModelTag: "qwen3:0.6b", Thinking: true, Temperature: 0.1,
		Messages: []llm.Message{llm.SystemMessage("sys"), llm.UserMessage("hi")},
		Schema:   personSchema(),
	}))
	assert.Equal(t, false, body["stream"])
	opts := body["options"].(map[string]any)
	assert.Equal(t, true, opts["think"])
	assert.Equal(t, "required", body["tool_choice"])
	sys := body["messages"].([]any)[0].(map[string]any)
	assert.Equal(t, ollamaToolPrompt+"\n\n---\n\nsys", sys["content"])

	body = encodeBody(t, o.PrepareRequest(ChatRequest{ModelTag: "llama3:8b", Messages: []llm.Message{llm.UserMessage("hi")}, Schema: personSchema()}))
	assert.Equal(t, "json", body["format"])
	assert.Nil(t, body["options"].(map[string]any)["think"])

	body = encodeBody(t, o.PrepareRequest(ChatRequest{
		ModelTag: "granite3.3:2b",
		Messages: []llm.Message{llm.SystemMessage("sys"), llm.UserMessage("hi")},
		Tools:    []llm.ToolDefinition{weatherTool()},
	}))
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, graniteSystemPrompt+"\n\nsys", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "available_tools", msgs[1].(map[string]any)["role"])
	assert.JSONEq(t, `[{"name":"get_weather","description":"Weather for a city","arguments":{"city":{"description":"City name"}}}]`,
		msgs[1].(map[string]any)["content"].(string))

	assert.True(t, o.SupportsTools("Granite3.3:2B"))
	assert.False(t, o.SupportsNativeSchema("granite3.3:2b"))
	assert.Empty(t, o.RequestHeaders("k"))
}

func TestOllamaParseResponse(t *testing.T) {
	raw := `{"model":"qwen3:0.6b","created_at":"2024-05-01T10:00:00.123Z","done":true,
		"message":{"role":"assistant","content":"<think>x</think>hello"},"prompt_eval_count":4,"eval_count":6}`
	p, err := Ollama{}.ParseResponse([]byte(raw), "qwen", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Choices[0].Message.Text())
	assert.Equal(t, 10, p.Usage.TotalTokens)
	assert.EqualValues(t, 1714557600, p.Created)

	raw = `{"model":"granite","created_at":"bad","done":true,"message":{"role":"assistant",
		"content":"<|tool_call|>[{\"function\":{\"name\":\"get_weather\",\"arguments\":{\"city\":\"Bern\"}}}]"}}`
	p, err = Ollama{}.ParseResponse([]byte(raw), "granite", 0, 0)
	require.NoError(t, err)
	msg := p.Choices[0].Message
	require.Len(t, msg.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(msg.ToolCalls[0].ID, "ollama-tool-"))
	assert.Equal(t, "", msg.Text())
}

func TestOpenRouter(t *testing.T) {
	body := encodeBody(t, OpenRouter{}.PrepareRequest(ChatRequest{ModelTag: "x/y", Messages: []llm.Message{llm.UserMessage("hi")}, Schema: personSchema()}))
	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	assert.Equal(t, "person", rf["json_schema"].(map[string]any)["name"])

	h := OpenRouter{}.RequestHeaders("k")
	assert.Equal(t, "Bearer k", h.Get("Authorization"))
	assert.NotEmpty(t, h.Get("X-Title"))

	p, err := OpenRouter{}.ParseResponse([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"x/y",
		"choices":[{"message":{"role":"assistant","content":"answer","reasoning":"  native  "}}]}`), "x/y", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "native", *p.Choices[0].Message.ReasoningContent)
}

func TestUnsupported(t *testing.T) {
	u := For("Cohere")
	assert.False(t, u.SupportsTools("m"))
	assert.False(t, u.SupportsNativeSchema("m"))
	body := encodeBody(t, u.PrepareRequest(ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}, Temperature: 0.3}))
	assert.Len(t, body, 2)

	_, err := u.ParseResponse([]byte(`{}`), "m", 0, 0)
	assert.ErrorIs(t, err, llm.ErrConfig)

	_, err = u.PrepareEmbeddingRequest("m", []string{"a"})
	assert.True(t, errors.Is(err, llm.ErrNotSupported))
	_, err = Anthropic{}.ImageURL("b", "m", "k")
	assert.ErrorIs(t, err, llm.ErrNotSupported)
}
