package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Chat(t *testing.T) {
	deps := testDeps(t)
	rec := &captureRecorder{}
	deps.Recorder = rec

	result, err := mcpChat(deps)(context.Background(), makeCallToolRequest("chat", map[string]any{
		"prompt":        "ping",
		"system_prompt": "answer tersely",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))
	assert.Equal(t, "echo: ping", toolText(t, result))
	assert.Equal(t, []string{"chat_turn"}, rec.labels())
}

func TestMCPTool_ChatErrors(t *testing.T) {
	deps := testDeps(t)
	handler := mcpChat(deps)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing prompt", map[string]any{}},
		{"unknown model", map[string]any{"prompt": "x", "model": "GPT 9"}},
		{"unknown tool", map[string]any{"prompt": "x", "tools": []any{"nope"}}},
		{"upstream failure", map[string]any{"prompt": "fail please"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("chat", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestMCPTool_ListModels(t *testing.T) {
	result, err := mcpListModels(testDeps(t))(context.Background(), makeCallToolRequest("list_models", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := toolText(t, result)
	assert.NotContains(t, text, "secret-key")
	var models []modelView
	require.NoError(t, json.Unmarshal([]byte(text), &models))
	require.Len(t, models, 1)
	assert.Equal(t, "gpt-test", models[0].ModelTag)
}

func TestMCPResource_Registry(t *testing.T) {
	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "models://registry"}}
	contents, err := mcpResourceRegistry(testDeps(t))(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "models://registry", tc.URI)
	assert.Equal(t, "application/json", tc.MIMEType)
	assert.Contains(t, tc.Text, "Test Model")
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, NewMCPServer(testDeps(t)))
}
