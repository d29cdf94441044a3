package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/lucky"
	"github.com/kalambet/llmcore/internal/provider"
	"github.com/kalambet/llmcore/internal/tools"
	"github.com/kalambet/llmcore/internal/transport"
)

// Turn states.
const (
	statePreparing         = "preparing_initial_turn"
	stateAwaitingInitial   = "awaiting_initial_response"
	stateExecutingTools    = "executing_tools"
	stateAwaitingSynthesis = "awaiting_synthesis_response"
	stateDone              = "done"
)

// Turn events.
const (
	eventSend       = "send"
	eventToolCall   = "tool_call"
	eventSynthesize = "synthesize"
	eventAnswer     = "answer"
)

// turn is the state of one Call. history starts as a copy of the caller's
// messages and grows with the tool cycle; the prompt rewrites of the initial
// request never reach it. state mirrors the machine and tags every debug
// line and every error the turn returns.
type turn struct {
	e         *Engine
	id        string
	history   []llm.Message
	synthesis bool
	state     string
	machine   *fsm.FSM
}

func (e *Engine) newTurn(messages []llm.Message) *turn {
	t := &turn{
		e:       e,
		id:      newJobID(),
		history: llm.CloneMessages(messages),
		state:   statePreparing,
	}
	if n := len(messages); n > 0 && messages[n-1].Role == llm.RoleTool {
		t.synthesis = true
	}

	logger := e.logger
	t.machine = fsm.NewFSM(
		statePreparing,
		fsm.Events{
			{Name: eventSend, Src: []string{statePreparing}, Dst: stateAwaitingInitial},
			{Name: eventToolCall, Src: []string{stateAwaitingInitial}, Dst: stateExecutingTools},
			{Name: eventSynthesize, Src: []string{stateExecutingTools}, Dst: stateAwaitingSynthesis},
			{Name: eventAnswer, Src: []string{stateAwaitingInitial, stateAwaitingSynthesis}, Dst: stateDone},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, ev *fsm.Event) {
				t.state = ev.Dst
				logger.Debug("turn state changed", "job", t.id, "from", ev.Src, "to", ev.Dst)
			},
		},
	)
	return t
}

func (t *turn) advance(ctx context.Context, event string) error {
	if err := t.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("turn %s: %s from %s: %w", t.id, event, t.state, err)
	}
	return nil
}

// fail tags err with the state the turn stopped in.
func (t *turn) fail(err error) error {
	return fmt.Errorf("%s: %w", t.state, err)
}

func (t *turn) run(ctx context.Context) (*llm.ResponsePayload, error) {
	req := t.initialRequest()
	if err := t.advance(ctx, eventSend); err != nil {
		return nil, err
	}

	initial, err := t.e.send(ctx, req)
	if err != nil {
		return nil, t.fail(err)
	}
	if err := t.postProcess(initial); err != nil {
		return nil, t.fail(err)
	}

	msg, _ := initial.FirstMessage()
	if !t.wantsTools(msg) {
		if err := t.advance(ctx, eventAnswer); err != nil {
			return nil, err
		}
		return initial, nil
	}

	if err := t.advance(ctx, eventToolCall); err != nil {
		return nil, err
	}
	if err := t.executeTools(ctx, msg); err != nil {
		return nil, t.fail(err)
	}

	if err := t.advance(ctx, eventSynthesize); err != nil {
		return nil, err
	}
	if t.e.debug {
		t.e.logger.Debug("synthesizing tool results", "job", t.id, "state", t.state, "messages", len(t.history))
	}
	final, err := t.e.send(ctx, t.e.chatRequest(t.history, nil, nil))
	if err != nil {
		return nil, t.fail(err)
	}
	if err := t.advance(ctx, eventAnswer); err != nil {
		return nil, err
	}

	if initial.Usage != nil {
		total := *initial.Usage
		if final.Usage != nil {
			total = total.Add(*final.Usage)
		}
		final.Usage = &total
	}
	return final, nil
}

// initialRequest shapes the first request: reasoning prompt, Lucky prompt
// rewrites and native tools or schema.
func (t *turn) initialRequest() transport.Request {
	e := t.e
	msgs := llm.CloneMessages(t.history)
	msgs = applyReasoningPrompt(msgs, e.thinking && e.model.Reasoning == llm.ReasoningPromptInducible)

	var schema *llm.SimpleSchema
	var defs []llm.ToolDefinition

	switch s := e.output.(type) {
	case luckySchema:
		msgs = luckyMessages(msgs, s.shape, nil, t.synthesis)
	case nativeSchema:
		schema = &s.schema
	}

	switch s := e.tools.(type) {
	case luckyTools:
		msgs = luckyMessages(msgs, s.shape, s.lib.Definitions(), t.synthesis)
	case payloadTools:
		if !t.synthesis {
			defs = s.lib.Definitions()
		}
	}

	return e.chatRequest(msgs, schema, defs)
}

// luckyMessages collapses msgs into a system and user pair carrying the
// delimiter protocol instructions. The first system and the last user
// message are used.
func luckyMessages(msgs []llm.Message, shape map[string]any, defs []llm.ToolDefinition, synthesis bool) []llm.Message {
	var system, user string
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			system = m.Text()
			break
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			user = msgs[i].Text()
			break
		}
	}
	system, user = lucky.PreparePrompt(system, user, shape, lucky.DefaultDelimiter, defs, synthesis)
	return []llm.Message{llm.SystemMessage(system), llm.UserMessage(user)}
}

func (t *turn) postProcess(p *llm.ResponsePayload) error {
	if s, ok := t.e.output.(nativeSchema); ok {
		normalizeSchemaResult(p, s.schema.Name)
	}
	// A synthesis prompt asks for prose, so there is no object to parse.
	if t.synthesis {
		return nil
	}
	if s, ok := t.e.output.(luckySchema); ok {
		return applyLucky(p, s.shape)
	}
	if s, ok := t.e.tools.(luckyTools); ok {
		return applyLucky(p, s.shape)
	}
	return nil
}

// wantsTools reports whether the initial response asks for tool execution.
// An empty tool call list is not a request.
func (t *turn) wantsTools(m llm.Message) bool {
	if t.e.library() == nil {
		return false
	}
	if m.HasToolCalls() {
		return true
	}
	if m.Content == nil {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(*m.Content), provider.ToolCallMarker) {
		return true
	}
	_, isLucky := t.e.tools.(luckyTools)
	return isLucky && !t.synthesis
}

type markerCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// executeTools runs the requested calls in order and appends the assistant
// message and one tool message per call to the history.
func (t *turn) executeTools(ctx context.Context, m llm.Message) error {
	lib := t.e.library()

	switch {
	case m.HasToolCalls():
		t.history = append(t.history, m.Clone())
		for _, c := range m.ToolCalls {
			if err := t.runTool(ctx, lib, c.ID, c.Function.Name, c.Function.Arguments); err != nil {
				return err
			}
		}

	case strings.HasPrefix(strings.TrimSpace(m.Text()), provider.ToolCallMarker):
		t.history = append(t.history, m.Clone())
		content := strings.TrimSpace(m.Text())
		i := strings.Index(content, "[")
		if i < 0 {
			break
		}
		var calls []markerCall
		if err := json.Unmarshal([]byte(content[i:]), &calls); err != nil {
			t.e.logger.Warn("ignoring malformed tool call list", "job", t.id, "state", t.state, "error", err)
			break
		}
		for _, c := range calls {
			id := "granite-tool-" + uuid.NewString()
			if err := t.runTool(ctx, lib, id, c.Name, llm.DecodeArguments(c.Arguments)); err != nil {
				return err
			}
		}

	default:
		var data map[string]any
		if err := json.Unmarshal([]byte(m.Text()), &data); err != nil {
			return llm.ParseError("decoding Lucky tool call: %v", err)
		}
		name, ok := data["tool_name"].(string)
		if !ok {
			return llm.ParseError("`tool_name` not found in Lucky tool call")
		}
		args, ok := data["arguments"].(map[string]any)
		if !ok {
			args = map[string]any{}
		}
		id := "lucky-tool-" + uuid.NewString()
		t.history = append(t.history, llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{llm.NewToolCall(id, name, args)},
		})
		return t.runTool(ctx, lib, id, name, args)
	}
	return nil
}

func (t *turn) runTool(ctx context.Context, lib *tools.Library, id, name string, args map[string]any) error {
	if t.e.debug {
		t.e.logger.Debug("executing tool", "job", t.id, "state", t.state, "tool", name, "call", id)
	}
	result, err := lib.Execute(ctx, name, args)
	if err != nil {
		return err
	}
	t.history = append(t.history, llm.ToolMessage(result, id, name))
	return nil
}
