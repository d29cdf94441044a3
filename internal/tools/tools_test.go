package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/llmcore/internal/llm"
)

func echoTool() Tool {
	return Tool{
		Definition: llm.NewToolDefinition("echo", "Echo the input", nil),
		Func: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args["text"]}, nil
		},
	}
}

func TestExecute(t *testing.T) {
	lib := NewLibrary(
		echoTool(),
		Tool{
			Definition: llm.NewToolDefinition("fail", "", nil),
			Func: func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("disk full")
			},
		},
		Tool{
			Definition: llm.NewToolDefinition("boom", "", nil),
			Func: func(context.Context, map[string]any) (any, error) {
				panic("kaboom")
			},
		},
	)

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"echo", map[string]any{"text": "hi"}, `{"echo":"hi"}`},
		{"echo", nil, `{"echo":null}`},
		{"fail", nil, "disk full"},
		{"boom", nil, "Tool panicked during execution: kaboom"},
		{"missing", nil, "Tool 'missing' not found in library."},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := lib.Execute(context.Background(), tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	lib := NewLibrary(Tool{
		Definition: llm.NewToolDefinition("slow", "", nil),
		Func: func(context.Context, map[string]any) (any, error) {
			<-release
			return "late", nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := lib.Execute(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	require.NoError(t, lib.Register(echoTool()))
	assert.Error(t, lib.Register(echoTool()), "duplicate names are rejected")
	assert.Error(t, lib.Register(Tool{Definition: llm.NewToolDefinition("nil", "", nil)}))

	require.NoError(t, lib.Register(Tool{
		Definition: llm.NewToolDefinition("alpha", "", nil),
		Func:       func(context.Context, map[string]any) (any, error) { return nil, nil },
	}))
	assert.Equal(t, []string{"alpha", "echo"}, lib.Names())
	defs := lib.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Function.Name)

	sub, err := lib.Subset("echo")
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Len())
	_, err = lib.Subset("nope")
	assert.Error(t, err)
}
