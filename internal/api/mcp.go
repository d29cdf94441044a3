package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/llmcore/internal/llm"
)

// NewMCPServer exposes chat and the model registry over MCP.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"llmcore",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("llmcore routes prompts to any configured LLM provider, with tool calling and structured output."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a prompt to a configured model and return its answer."),
			mcp.WithString("prompt", mcp.Description("The user prompt"), mcp.Required()),
			mcp.WithString("model", mcp.Description("Registry model name (defaults to the server's default model)")),
			mcp.WithString("system_prompt", mcp.Description("Optional system prompt")),
			mcp.WithArray("tools", mcp.Description("Names of server tools the model may call")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List the models in the registry with their provider and prices."),
		),
		mcpListModels(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"models://registry",
			"Model Registry",
			mcp.WithResourceDescription("Configured models as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRegistry(deps),
	)

	return s
}

func mcpChat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		model := req.GetString("model", deps.DefaultModel)
		system := req.GetString("system_prompt", "")
		toolNames := req.GetStringSlice("tools", nil)

		var msgs []llm.Message
		if system != "" {
			msgs = append(msgs, llm.SystemMessage(system))
		}
		msgs = append(msgs, llm.UserMessage(prompt))

		e, err := buildEngine(deps, model, engineParams{tools: toolNames})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		payload, err := e.Call(ctx, msgs)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}
		m, ok := payload.FirstMessage()
		if !ok {
			return mcpError("API response did not contain any messages"), nil
		}
		return mcpText(m.Text()), nil
	}
}

func mcpListModels(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(modelViews(deps.Models.Models()))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal models: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRegistry(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(modelViews(deps.Models.Models()))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal models: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
