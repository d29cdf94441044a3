package api

import (
	"net/http"

	"github.com/kalambet/llmcore/internal/engine"
	"github.com/kalambet/llmcore/internal/llm"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Model       string            `json:"model"`
	Messages    []llm.Message     `json:"messages"`
	Schema      *llm.SimpleSchema `json:"schema,omitempty"`
	Tools       []string          `json:"tools,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Thinking    *bool             `json:"thinking,omitempty"`
}

// SwarmRequest is the body of POST /v1/swarm.
type SwarmRequest struct {
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt"`
	Prompts      []string          `json:"prompts"`
	Size         int               `json:"size,omitempty"`
	Schema       *llm.SimpleSchema `json:"schema,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"`
}

type swarmItem struct {
	Payload *llm.ResponsePayload `json:"payload,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type engineParams struct {
	schema      *llm.SimpleSchema
	tools       []string
	temperature *float64
	thinking    *bool
}

// buildEngine opens the engine for one request. Tool selection problems are
// configuration errors.
func buildEngine(deps Deps, model string, p engineParams) (*engine.Engine, error) {
	if model == "" {
		model = deps.DefaultModel
	}
	var opts []engine.Option
	if deps.Recorder != nil {
		opts = append(opts, engine.WithRecorder(deps.Recorder))
	}
	if p.schema != nil {
		opts = append(opts, engine.WithSchema(*p.schema))
	}
	if len(p.tools) > 0 {
		if deps.Tools == nil {
			return nil, llm.ConfigError("no tools are available on this server")
		}
		lib, err := deps.Tools.Subset(p.tools...)
		if err != nil {
			return nil, llm.ConfigError("%v", err)
		}
		opts = append(opts, engine.WithTools(lib))
	}
	if p.temperature != nil {
		opts = append(opts, engine.WithTemperature(*p.temperature))
	}
	if p.thinking != nil {
		opts = append(opts, engine.WithThinking(*p.thinking))
	}
	return deps.NewEngine(model, opts...)
}

// openEngine is buildEngine for HTTP handlers. A nil return means the error
// response was already written.
func openEngine(w http.ResponseWriter, deps Deps, model string, p engineParams) *engine.Engine {
	e, err := buildEngine(deps, model, p)
	if err != nil {
		engineError(w, err)
		return nil
	}
	return e
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		e := openEngine(w, deps, req.Model, engineParams{
			schema:      req.Schema,
			tools:       req.Tools,
			temperature: req.Temperature,
			thinking:    req.Thinking,
		})
		if e == nil {
			return
		}

		payload, err := e.Call(r.Context(), req.Messages)
		if err != nil {
			engineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleSwarm(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SwarmRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if len(req.Prompts) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompts is required and must not be empty")
			return
		}

		e := openEngine(w, deps, req.Model, engineParams{schema: req.Schema, temperature: req.Temperature})
		if e == nil {
			return
		}

		size := req.Size
		if size <= 0 {
			size = deps.SwarmSize
		}
		results := e.Swarm(r.Context(), req.SystemPrompt, req.Prompts, size)

		items := make([]swarmItem, len(results))
		for i, res := range results {
			items[i].Payload = res.Payload
			if res.Err != nil {
				items[i].Error = res.Err.Error()
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": items})
	}
}
