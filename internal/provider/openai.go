package provider

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

// OpenAI speaks the Chat Completions API.
type OpenAI struct{ optional }

type openAIRequest struct {
	Model       string               `json:"model"`
	Messages    []chatMessage        `json:"messages"`
	Temperature float64              `json:"temperature"`
	Tools       []llm.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  any                  `json:"tool_choice,omitempty"`
}

func (OpenAI) Name() string { return NameOpenAI }

func (OpenAI) PrepareRequest(req ChatRequest) any {
	body := openAIRequest{
		Model:       req.ModelTag,
		Messages:    outgoingMessages(req.Messages, true),
		Temperature: req.Temperature,
	}
	switch {
	case len(req.Tools) > 0:
		body.Tools = req.Tools
		body.ToolChoice = "auto"
	case req.Schema != nil:
		body.Tools = []llm.ToolDefinition{req.Schema.AsTool()}
		body.ToolChoice = forceFunction(req.Schema.Name)
	}
	return body
}

func (OpenAI) RequestURL(baseURL, _, _ string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (OpenAI) RequestHeaders(apiKey string) http.Header { return bearerHeaders(apiKey) }

func (OpenAI) SupportsNativeSchema(string) bool { return true }
func (OpenAI) SupportsTools(string) bool        { return true }
func (OpenAI) SupportsEmbeddings(string) bool   { return true }

func (OpenAI) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	c, err := decodeCompletion(raw, NameOpenAI)
	if err != nil {
		return nil, err
	}
	p := payloadFromCompletion(c, "openai-tool-", inputPrice, outputPrice)
	if p.Model == "" {
		p.Model = modelName
	}
	return p, nil
}

func (OpenAI) PrepareEmbeddingRequest(modelTag string, texts []string) (any, error) {
	return map[string]any{"model": modelTag, "input": texts}, nil
}

func (OpenAI) EmbeddingURL(baseURL, _, _ string) (string, error) {
	return strings.TrimRight(baseURL, "/") + "/embeddings", nil
}

func (OpenAI) ParseEmbeddingResponse(raw []byte) ([][]float32, error) {
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse OpenAI embedding response: %v", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

func (OpenAI) PrepareImageRequest(prompt, modelTag string) (any, error) {
	return map[string]any{
		"model":           modelTag,
		"prompt":          prompt,
		"n":               1,
		"response_format": "b64_json",
	}, nil
}

func (OpenAI) ImageURL(baseURL, _, _ string) (string, error) {
	return strings.TrimRight(baseURL, "/") + "/images/generations", nil
}

func (OpenAI) ParseImageResponse(raw []byte) (*ImageResult, error) {
	var resp struct {
		Data []struct {
			B64JSON       string `json:"b64_json"`
			RevisedPrompt string `json:"revised_prompt"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse OpenAI image response: %v", err)
	}
	if len(resp.Data) == 0 {
		return nil, llm.ParseError("OpenAI image response contained no data")
	}
	return &ImageResult{Text: resp.Data[0].RevisedPrompt, ImageB64: resp.Data[0].B64JSON}, nil
}
