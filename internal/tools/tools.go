// Package tools holds the executable tool library and the bridge that runs
// model-requested tool calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kalambet/llmcore/internal/llm"
)

// Func is a tool implementation. Its result is sent back to the model as
// JSON; a returned error is sent back as its message.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a definition shown to the model with its implementation.
type Tool struct {
	Definition llm.ToolDefinition
	Func       Func
}

// Name returns the tool's function name.
func (t Tool) Name() string { return t.Definition.Function.Name }

// Library is a named set of tools. It is safe for concurrent use.
type Library struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewLibrary returns a library holding the given tools. Later tools replace
// earlier ones with the same name.
func NewLibrary(tools ...Tool) *Library {
	l := &Library{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		l.tools[t.Name()] = t
	}
	return l
}

// Register adds t, failing if a tool with the same name exists.
func (l *Library) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("registering tool: empty name")
	}
	if t.Func == nil {
		return fmt.Errorf("registering tool %q: nil function", t.Name())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tools[t.Name()]; ok {
		return fmt.Errorf("registering tool %q: already registered", t.Name())
	}
	l.tools[t.Name()] = t
	return nil
}

// Get looks up a tool by name.
func (l *Library) Get(name string) (Tool, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tools[name]
	return t, ok
}

// Len returns the number of tools.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tools)
}

// Names returns the tool names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.tools))
	for n := range l.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions sorted by name.
func (l *Library) Definitions() []llm.ToolDefinition {
	names := l.Names()
	l.mu.RLock()
	defer l.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, n := range names {
		defs = append(defs, l.tools[n].Definition)
	}
	return defs
}

// Subset returns a library with only the named tools. Unknown names are
// reported as an error.
func (l *Library) Subset(names ...string) (*Library, error) {
	out := NewLibrary()
	for _, n := range names {
		t, ok := l.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out.tools[n] = t
	}
	return out, nil
}

type outcome struct {
	result string
}

// Execute runs the named tool and renders its outcome as the content of a
// tool message. Missing tools, tool errors and panics all become result
// text. The only error returned is ctx's, when it ends before the tool does.
func (l *Library) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := l.Get(name)
	if !ok {
		return fmt.Sprintf("Tool '%s' not found in library.", name), nil
	}
	if args == nil {
		args = map[string]any{}
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tool panicked", "tool", name, "panic", r)
				done <- outcome{result: fmt.Sprintf("Tool panicked during execution: %v", r)}
			}
		}()
		done <- outcome{result: run(ctx, t, args)}
	}()

	select {
	case o := <-done:
		return o.result, nil
	case <-ctx.Done():
		return "", fmt.Errorf("executing tool %q: %w", name, ctx.Err())
	}
}

func run(ctx context.Context, t Tool, args map[string]any) string {
	res, err := t.Func(ctx, args)
	if err != nil {
		slog.Warn("tool returned error", "tool", t.Name(), "error", err)
		return err.Error()
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf("Failed to serialize tool result: %v", err)
	}
	return string(b)
}
