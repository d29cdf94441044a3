package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/llmcore/internal/engine"
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
	"github.com/kalambet/llmcore/internal/tools"
	"github.com/kalambet/llmcore/internal/transport"
	"github.com/kalambet/llmcore/internal/usage"
)

// upstream mimics an OpenAI-compatible provider. Requests whose last
// message contains "fail" are rejected with 401.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		last := ""
		if n := len(body.Messages); n > 0 {
			last = body.Messages[n-1].Content
		}
		if strings.Contains(last, "fail") {
			http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
			return
		}
		reply, _ := json.Marshal("echo: " + last)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"r1","choices":[{"message":{"role":"assistant","content":%s}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type staticCatalog map[string]llm.ModelInfo

func (c staticCatalog) Lookup(name string) (llm.ModelInfo, error) {
	m, ok := c[name]
	if !ok {
		return llm.ModelInfo{}, llm.ConfigError("Model '%s' not found", name)
	}
	return m, nil
}

func (c staticCatalog) Models() []llm.ModelInfo {
	var out []llm.ModelInfo
	for _, m := range c {
		out = append(out, m)
	}
	return out
}

type captureRecorder struct {
	mu     sync.Mutex
	events []usage.Event
}

func (c *captureRecorder) Record(_ context.Context, ev usage.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureRecorder) labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.events {
		out = append(out, ev.TaskLabel)
	}
	return out
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	srv := upstream(t)
	catalog := staticCatalog{
		"Test Model": {
			Name:        "Test Model",
			Provider:    "OpenAI",
			ModelTag:    "gpt-test",
			BaseURL:     srv.URL,
			APIKey:      "secret-key",
			InputPrice:  1,
			OutputPrice: 2,
		},
	}
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	echo := tools.Tool{
		Definition: llm.NewToolDefinition("echo", "Echo the input", map[string]any{"type": "object"}),
		Func:       func(_ context.Context, args map[string]any) (any, error) { return args, nil },
	}

	return Deps{
		Models: catalog,
		NewEngine: func(model string, opts ...engine.Option) (*engine.Engine, error) {
			opts = append(opts, engine.WithRetryPolicy(transport.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}))
			return engine.Open(catalog, model, opts...)
		},
		Store:        store,
		Tools:        tools.NewLibrary(echo),
		DefaultModel: "Test Model",
		SwarmSize:    2,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	h := NewHandler(testDeps(t))
	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestBearerAuth(t *testing.T) {
	deps := testDeps(t)
	deps.Token = "t0ken"
	h := NewHandler(deps)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/models", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/models", nil, "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/models", nil, "Authorization", "Bearer t0ken").Code)
}

func TestModelsHideSecrets(t *testing.T) {
	rr := do(t, NewHandler(testDeps(t)), http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-key")

	var body struct {
		Data []modelView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Test Model", body.Data[0].Name)
	assert.Equal(t, "promptInducible", body.Data[0].Reasoning)
}

func TestChat(t *testing.T) {
	deps := testDeps(t)
	rec := &captureRecorder{}
	deps.Recorder = rec
	h := NewHandler(deps)

	rr := do(t, h, http.MethodPost, "/v1/chat", ChatRequest{
		Messages: []llm.Message{llm.UserMessage("hello")},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var p llm.ResponsePayload
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	m, ok := p.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, "echo: hello", m.Text())
	require.NotNil(t, p.Usage)
	assert.Equal(t, 15, p.Usage.TotalTokens)
	assert.Equal(t, []string{"chat_turn"}, rec.labels())
}

func TestChatErrors(t *testing.T) {
	h := NewHandler(testDeps(t))
	user := []llm.Message{llm.UserMessage("hi")}

	tests := []struct {
		name string
		req  ChatRequest
		want int
	}{
		{"no messages", ChatRequest{}, http.StatusBadRequest},
		{"unknown model", ChatRequest{Model: "GPT 9", Messages: user}, http.StatusBadRequest},
		{"unknown tool", ChatRequest{Messages: user, Tools: []string{"rm_rf"}}, http.StatusBadRequest},
		{"tools and schema", ChatRequest{Messages: user, Tools: []string{"echo"}, Schema: &llm.SimpleSchema{Name: "s"}}, http.StatusBadRequest},
		{"upstream rejects", ChatRequest{Messages: []llm.Message{llm.UserMessage("please fail")}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/chat", tt.req)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSwarm(t *testing.T) {
	h := NewHandler(testDeps(t))
	rr := do(t, h, http.MethodPost, "/v1/swarm", SwarmRequest{
		SystemPrompt: "be brief",
		Prompts:      []string{"one", "fail two", "three"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Results []swarmItem `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Results, 3)

	m, ok := body.Results[0].Payload.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, "echo: one", m.Text())
	assert.Nil(t, body.Results[1].Payload)
	assert.Contains(t, body.Results[1].Error, "401")
	assert.Empty(t, body.Results[2].Error)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/swarm", SwarmRequest{}).Code)
}

func TestConversationLifecycle(t *testing.T) {
	deps := testDeps(t)
	rec := &captureRecorder{}
	deps.Recorder = rec
	h := NewHandler(deps)

	rr := do(t, h, http.MethodPost, "/v1/conversations", createConversationRequest{SystemPrompt: "be kind", Title: "Greetings"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		ID        string `json:"id"`
		ModelName string `json:"model_name"`
		Title     string `json:"title"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "Test Model", created.ModelName)
	assert.Equal(t, "Greetings", created.Title)

	path := "/v1/conversations/" + created.ID
	rr = do(t, h, http.MethodPost, path+"/messages", sendMessageRequest{Prompt: "hi there"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sent sendMessageResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sent))
	assert.Equal(t, "echo: hi there", sent.Message.Text())
	assert.Equal(t, 15, sent.Usage.TotalTokens)
	assert.Equal(t, []string{"convo"}, rec.labels())

	// A failed turn leaves the stored history alone.
	rr = do(t, h, http.MethodPost, path+"/messages", sendMessageRequest{Prompt: "now fail"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	rr = do(t, h, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Messages []llm.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got.Messages, 3)
	assert.Equal(t, llm.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "hi there", got.Messages[1].Text())

	rr = do(t, h, http.MethodGet, "/v1/conversations/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), created.ID)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, path+"/messages", sendMessageRequest{Prompt: "x"}).Code)
}

func TestUsage(t *testing.T) {
	deps := testDeps(t)
	h := NewHandler(deps)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/usage", nil).Code)

	sr := usage.NewStoreRecorder(deps.Store)
	deps.Recorder = sr
	deps.Usage = sr
	h = NewHandler(deps)

	rr := do(t, h, http.MethodPost, "/v1/chat", ChatRequest{Messages: []llm.Message{llm.UserMessage("count me")}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/v1/usage?since=1h", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Since  string        `json:"since"`
		Totals []usage.Total `json:"totals"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "1h0m0s", body.Since)
	require.Len(t, body.Totals, 1)
	assert.Equal(t, "chat_turn", body.Totals[0].TaskLabel)
	assert.Equal(t, 15, body.Totals[0].TotalTokens)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/usage?since=yesterday", nil).Code)
}
