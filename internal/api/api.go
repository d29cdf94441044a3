// Package api serves the engine over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/llmcore/internal/engine"
	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
	"github.com/kalambet/llmcore/internal/tools"
	"github.com/kalambet/llmcore/internal/usage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Catalog lists and resolves registry models.
type Catalog interface {
	engine.ModelLookup
	Models() []llm.ModelInfo
}

// EngineFactory opens an engine for the named model.
type EngineFactory func(model string, opts ...engine.Option) (*engine.Engine, error)

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Models       Catalog
	NewEngine    EngineFactory
	Store        *storage.Store
	Tools        *tools.Library // optional; requests may pick a subset by name
	Recorder     usage.Recorder // optional
	Usage        usage.Reporter // optional; GET /v1/usage answers 404 without it
	DefaultModel string
	SwarmSize    int
	Token        string // bearer token; empty disables auth
}

// NewHandler returns the llmcore REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/v1/models", handleModels(deps))
		r.Post("/v1/chat", handleChat(deps))
		r.Post("/v1/swarm", handleSwarm(deps))

		r.Route("/v1/conversations", func(r chi.Router) {
			r.Get("/", handleListConversations(deps))
			r.Post("/", handleCreateConversation(deps))
			r.Get("/{id}", handleGetConversation(deps))
			r.Delete("/{id}", handleDeleteConversation(deps))
			r.Post("/{id}/messages", handleSendMessage(deps))
		})

		r.Get("/v1/usage", handleUsage(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// modelView is the public shape of a registry entry. Keys and endpoints
// stay server-side.
type modelView struct {
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	ModelTag    string  `json:"model_tag"`
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
	TokenWindow int     `json:"token_window,omitempty"`
	Reasoning   string  `json:"reasoning"`
}

func modelViews(models []llm.ModelInfo) []modelView {
	out := make([]modelView, len(models))
	for i, m := range models {
		out[i] = modelView{
			Name:        m.Name,
			Provider:    m.Provider,
			ModelTag:    m.ModelTag,
			InputPrice:  m.InputPrice,
			OutputPrice: m.OutputPrice,
			TokenWindow: m.TokenWindow,
			Reasoning:   m.Reasoning.String(),
		}
	}
	return out
}

func handleModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"data":   modelViews(deps.Models.Models()),
		})
	}
}

func handleUsage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Usage == nil {
			httpError(w, http.StatusNotFound, "not_found", "usage reporting is not enabled")
			return
		}
		window := 24 * time.Hour
		if s := r.URL.Query().Get("since"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil || d <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since duration %q", s)
				return
			}
			window = d
		}
		totals, err := deps.Usage.Totals(r.Context(), time.Now().Add(-window))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read usage: %v", err)
			return
		}
		if totals == nil {
			totals = []usage.Total{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"since": window.String(), "totals": totals})
	}
}

// engineError maps engine failures to HTTP statuses.
func engineError(w http.ResponseWriter, err error) {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrConfig), errors.Is(err, llm.ErrNotSupported):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.As(err, &apiErr):
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	case errors.Is(err, llm.ErrRetriesExhausted), errors.Is(err, llm.ErrParse):
		httpError(w, http.StatusBadGateway, "upstream_error", "%v", err)
	default:
		slog.Error("engine call failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
