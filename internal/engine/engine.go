// Package engine runs conversational turns against a configured model. It
// resolves how tools and structured output reach the provider, drives the
// initial call, the optional tool cycle and the synthesis call, and exposes
// batch ("swarm") calls and image generation on the same model setup.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/lucky"
	"github.com/kalambet/llmcore/internal/provider"
	"github.com/kalambet/llmcore/internal/tools"
	"github.com/kalambet/llmcore/internal/transport"
	"github.com/kalambet/llmcore/internal/usage"
)

// DefaultTemperature is used when no temperature option is given.
const DefaultTemperature = 0.7

// ModelLookup resolves a registry model by name.
type ModelLookup interface {
	Lookup(name string) (llm.ModelInfo, error)
}

// Engine is an immutable model configuration. It is safe for concurrent use;
// every Call owns its own turn state.
type Engine struct {
	model    llm.ModelInfo
	prov     provider.Provider
	client   *transport.Client
	tools    toolStrategy
	output   structuredStrategy
	recorder usage.Recorder
	models   ModelLookup
	logger   *slog.Logger

	temperature float64
	thinking    bool
	debug       bool
}

type settings struct {
	lib         *tools.Library
	schema      *llm.SimpleSchema
	temperature float64
	thinking    *bool
	debug       bool
	policy      transport.RetryPolicy
	client      *transport.Client
	recorder    usage.Recorder
	models      ModelLookup
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithTools makes lib available to the model.
func WithTools(lib *tools.Library) Option {
	return func(s *settings) { s.lib = lib }
}

// WithSchema requests structured output matching schema.
func WithSchema(schema llm.SimpleSchema) Option {
	return func(s *settings) { s.schema = &schema }
}

func WithTemperature(t float64) Option {
	return func(s *settings) { s.temperature = t }
}

// WithThinking overrides the reasoning default, which is on only for models
// that always reason.
func WithThinking(on bool) Option {
	return func(s *settings) { s.thinking = &on }
}

// WithRetryPolicy sets the retry policy of the engine's own client. It is
// ignored when WithClient is given.
func WithRetryPolicy(p transport.RetryPolicy) Option {
	return func(s *settings) { s.policy = p }
}

// WithDebug logs payloads and raw responses at debug level.
func WithDebug(on bool) Option {
	return func(s *settings) { s.debug = on }
}

// WithRecorder attaches a usage recorder. Each Call records one event.
func WithRecorder(r usage.Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// WithModels attaches the registry used to resolve image models.
func WithModels(m ModelLookup) Option {
	return func(s *settings) { s.models = m }
}

func WithClient(c *transport.Client) Option {
	return func(s *settings) { s.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New builds an engine for model. Supplying both tools and a schema is a
// configuration error.
func New(model llm.ModelInfo, opts ...Option) (*Engine, error) {
	s := settings{
		temperature: DefaultTemperature,
		policy:      transport.DefaultRetryPolicy(),
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(&s)
	}

	prov := provider.For(model.Provider)
	ts, ss, err := resolveStrategies(
		prov.SupportsTools(model.ModelTag),
		prov.SupportsNativeSchema(model.ModelTag),
		s.lib, s.schema,
	)
	if err != nil {
		return nil, err
	}

	thinking := model.Reasoning == llm.ReasoningAlways
	if s.thinking != nil {
		thinking = *s.thinking
	}

	client := s.client
	if client == nil {
		client = transport.New(s.policy, transport.WithLogger(s.logger))
	}

	e := &Engine{
		model:       model,
		prov:        prov,
		client:      client,
		tools:       ts,
		output:      ss,
		recorder:    s.recorder,
		models:      s.models,
		logger:      s.logger,
		temperature: s.temperature,
		thinking:    thinking,
		debug:       s.debug,
	}
	if e.debug {
		e.logger.Debug("engine configured",
			"model", model.Name,
			"provider", prov.Name(),
			"tool_strategy", strategyName(ts),
			"structured_strategy", strategyName(ss),
			"thinking", thinking,
			"reasoning", model.Reasoning.String(),
		)
	}
	return e, nil
}

// Open resolves name in models and builds an engine for it. The registry is
// also attached for image generation.
func Open(models ModelLookup, name string, opts ...Option) (*Engine, error) {
	info, err := models.Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(info, append([]Option{WithModels(models)}, opts...)...)
}

// Model returns the resolved model the engine talks to.
func (e *Engine) Model() llm.ModelInfo { return e.model }

// Thinking reports whether reasoning is requested.
func (e *Engine) Thinking() bool { return e.thinking }

// HasTools reports whether a tool library is attached.
func (e *Engine) HasTools() bool { return e.library() != nil }

// HasSchema reports whether structured output is enforced.
func (e *Engine) HasSchema() bool {
	_, none := e.output.(unstructured)
	return !none
}

// Call runs one turn over messages and returns the final response. The
// caller's messages are never modified.
func (e *Engine) Call(ctx context.Context, messages []llm.Message) (*llm.ResponsePayload, error) {
	t := e.newTurn(messages)
	payload, err := t.run(ctx)
	if err != nil {
		return nil, err
	}
	if payload.Usage != nil {
		usage.RecordQuietly(ctx, e.recorder, usage.Event{
			ID:        t.id,
			TaskLabel: "chat_turn",
			ModelName: e.model.Name,
			Usage:     *payload.Usage,
		})
	}
	return payload, nil
}

func (e *Engine) library() *tools.Library {
	switch s := e.tools.(type) {
	case payloadTools:
		return s.lib
	case luckyTools:
		return s.lib
	}
	return nil
}

func (e *Engine) chatRequest(msgs []llm.Message, schema *llm.SimpleSchema, defs []llm.ToolDefinition) transport.Request {
	body := e.prov.PrepareRequest(provider.ChatRequest{
		ModelTag:    e.model.ModelTag,
		Messages:    msgs,
		Temperature: e.temperature,
		Schema:      schema,
		Tools:       defs,
		Thinking:    e.thinking,
		Debug:       e.debug,
	})
	if e.debug {
		if b, err := json.Marshal(body); err == nil {
			e.logger.Debug("request payload", "model", e.model.Name, "payload", string(b))
		}
	}
	return transport.Request{
		URL:    e.prov.RequestURL(e.model.BaseURL, e.model.ModelTag, e.model.APIKey),
		Header: e.prov.RequestHeaders(e.model.APIKey),
		Body:   body,
	}
}

func (e *Engine) parse(raw []byte) (*llm.ResponsePayload, error) {
	if e.debug {
		e.logger.Debug("raw response", "model", e.model.Name, "body", string(raw))
	}
	return e.prov.ParseResponse(raw, e.model.Name, e.model.InputPrice, e.model.OutputPrice)
}

func (e *Engine) send(ctx context.Context, req transport.Request) (*llm.ResponsePayload, error) {
	raw, err := e.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.parse(raw)
}

// normalizeSchemaResult moves a native schema result into the message
// content. Providers return it either as a single call to the schema tool or
// as content shaped like {"name": ..., "arguments": ...}.
func normalizeSchemaResult(p *llm.ResponsePayload, schemaName string) {
	if len(p.Choices) == 0 {
		return
	}
	m := &p.Choices[0].Message

	var args any
	found := false
	if len(m.ToolCalls) == 1 && m.ToolCalls[0].Function.Name == schemaName {
		args, found = m.ToolCalls[0].Function.Arguments, true
	}
	if !found && m.Content != nil {
		var obj map[string]any
		if json.Unmarshal([]byte(*m.Content), &obj) == nil {
			_, hasName := obj["name"]
			a, hasArgs := obj["arguments"]
			if hasName && hasArgs {
				args, found = a, true
			}
		}
	}
	if !found {
		return
	}

	var content string
	if s, ok := args.(string); ok {
		content = s
	} else {
		b, err := json.Marshal(args)
		if err != nil {
			return
		}
		content = string(b)
	}
	m.Content = llm.String(content)
	m.ToolCalls = nil
}

// applyLucky replaces the first message content with the canonical JSON
// parsed from it.
func applyLucky(p *llm.ResponsePayload, shape map[string]any) error {
	if len(p.Choices) == 0 || p.Choices[0].Message.Content == nil {
		return llm.ParseError("No content for Lucky parsing")
	}
	parsed, err := lucky.ParseResponse(*p.Choices[0].Message.Content, shape, lucky.DefaultDelimiter)
	if err != nil {
		return err
	}
	out, err := lucky.Canonical(parsed)
	if err != nil {
		return llm.ParseError("encoding Lucky result: %v", err)
	}
	p.Choices[0].Message.Content = llm.String(out)
	return nil
}

func newJobID() string { return uuid.NewString() }
