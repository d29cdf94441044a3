package engine

import (
	"context"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/lucky"
	"github.com/kalambet/llmcore/internal/transport"
	"github.com/kalambet/llmcore/internal/usage"
)

// SwarmResult is the outcome of one prompt of a swarm call.
type SwarmResult struct {
	Payload *llm.ResponsePayload
	Err     error
}

// Swarm sends one single-turn request per prompt, all sharing systemPrompt,
// with at most size in flight. Results keep the order of prompts and a
// failure affects only its own entry. Tools are never offered or executed.
func (e *Engine) Swarm(ctx context.Context, systemPrompt string, prompts []string, size int) []SwarmResult {
	reqs := make([]transport.Request, len(prompts))
	for i, p := range prompts {
		system, user := systemPrompt, p
		var schema *llm.SimpleSchema
		switch s := e.output.(type) {
		case luckySchema:
			system, user = lucky.PreparePrompt(system, user, s.shape, lucky.DefaultDelimiter, nil, false)
		case nativeSchema:
			schema = &s.schema
		}
		msgs := []llm.Message{llm.SystemMessage(system), llm.UserMessage(user)}
		reqs[i] = e.chatRequest(msgs, schema, nil)
	}

	jobID := newJobID()
	raw := e.client.Batch(ctx, reqs, size)
	out := make([]SwarmResult, len(raw))
	for i, r := range raw {
		if r.Err != nil {
			out[i].Err = r.Err
			continue
		}
		p, err := e.parse(r.Body)
		if err != nil {
			out[i].Err = err
			continue
		}
		switch s := e.output.(type) {
		case nativeSchema:
			normalizeSchemaResult(p, s.schema.Name)
		case luckySchema:
			if err := applyLucky(p, s.shape); err != nil {
				out[i].Err = err
				continue
			}
		}
		out[i].Payload = p
		if p.Usage != nil {
			usage.RecordQuietly(ctx, e.recorder, usage.Event{
				ID:        jobID,
				TaskLabel: "swarm_call",
				ModelName: e.model.Name,
				Usage:     *p.Usage,
			})
		}
	}
	return out
}
