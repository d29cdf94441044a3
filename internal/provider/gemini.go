package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
)

// Gemini speaks the Google generateContent API. The key travels in the URL.
type Gemini struct{ optional }

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             *string                 `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
	InlineData       *geminiInlineData       `json:"inlineData,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []any           `json:"tools,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

func (Gemini) Name() string { return NameGoogle }

func geminiRole(role string) string {
	switch role {
	case llm.RoleAssistant:
		return "model"
	case llm.RoleTool:
		return "function"
	default:
		return "user"
	}
}

func (Gemini) PrepareRequest(req ChatRequest) any {
	var system strings.Builder
	body := geminiRequest{Contents: []geminiContent{}}

	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			if m.Content != nil {
				system.WriteString(*m.Content)
				system.WriteByte('\n')
			}
			continue
		}
		role := geminiRole(m.Role)
		var parts []geminiPart
		switch {
		case m.HasToolCalls():
			for _, tc := range m.ToolCalls {
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: tc.Function.Name,
					Args: json.RawMessage(tc.Function.ArgumentsJSON()),
				}})
			}
		case m.Content != nil && role == "function":
			var response any
			if err := json.Unmarshal([]byte(*m.Content), &response); err != nil {
				response = map[string]any{"content": *m.Content}
			}
			parts = append(parts, geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     derefString(m.Name),
				Response: response,
			}})
		case m.Text() != "":
			parts = append(parts, geminiPart{Text: llm.String(m.Text())})
		}
		if len(parts) > 0 {
			body.Contents = append(body.Contents, geminiContent{Role: role, Parts: parts})
		}
	}

	if s := strings.TrimSpace(system.String()); s != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: llm.String(s)}}}
	}

	gen := map[string]any{"temperature": req.Temperature}
	switch {
	case len(req.Tools) > 0:
		decls := make([]llm.FunctionDefinition, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = t.Function
		}
		body.Tools = []any{map[string]any{"function_declarations": decls}}
	case req.Schema != nil:
		gen["response_mime_type"] = "application/json"
		gen["response_schema"] = req.Schema.JSONSchema()
	}
	body.GenerationConfig = gen
	return body
}

func (Gemini) RequestURL(baseURL, modelTag, apiKey string) string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s", strings.TrimRight(baseURL, "/"), modelTag, url.QueryEscape(apiKey))
}

func (Gemini) RequestHeaders(string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

func (Gemini) SupportsNativeSchema(string) bool { return true }
func (Gemini) SupportsTools(string) bool        { return true }
func (Gemini) SupportsEmbeddings(string) bool   { return true }

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (Gemini) ParseResponse(raw []byte, modelName string, inputPrice, outputPrice float64) (*llm.ResponsePayload, error) {
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Gemini response: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, llm.ParseError("Gemini response did not contain any candidates")
	}

	msg := llm.Message{Role: llm.RoleAssistant}
	var text strings.Builder
	hasText := false
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != nil {
			text.WriteString(*part.Text)
			hasText = true
		}
		if fc := part.FunctionCall; fc != nil {
			msg.Name = llm.String(fc.Name)
			msg.ToolCalls = append(msg.ToolCalls,
				llm.NewToolCall("gemini-tool-"+uuid.NewString(), fc.Name, llm.DecodeArguments(fc.Args)))
		}
	}
	if hasText {
		content, reasoning := extractThinking(text.String())
		msg.Content = llm.String(content)
		msg.ReasoningContent = reasoning
	} else if msg.HasToolCalls() {
		msg.Content = llm.String("")
	}

	p := &llm.ResponsePayload{
		ID:      "gemini-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelName,
		Choices: []llm.Choice{{Message: msg}},
	}
	if meta := resp.UsageMetadata; meta != nil {
		u := llm.Usage{
			PromptTokens:     meta.PromptTokenCount,
			CompletionTokens: meta.CandidatesTokenCount,
			TotalTokens:      meta.TotalTokenCount,
		}
		u.CalculateCost(inputPrice, outputPrice)
		p.Usage = &u
	}
	return p, nil
}

func (Gemini) PrepareImageRequest(prompt, _ string) (any, error) {
	return map[string]any{
		"contents": []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: llm.String(prompt)}},
		}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}, nil
}

func (g Gemini) ImageURL(baseURL, modelTag, apiKey string) (string, error) {
	return g.RequestURL(baseURL, modelTag, apiKey), nil
}

func (Gemini) ParseImageResponse(raw []byte) (*ImageResult, error) {
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Gemini image response: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, llm.ParseError("could not find 'parts' in Gemini image response")
	}
	out := &ImageResult{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != nil {
			out.Text = *part.Text
		}
		if part.InlineData != nil {
			out.ImageB64 = part.InlineData.Data
		}
	}
	return out, nil
}

func (Gemini) PrepareEmbeddingRequest(modelTag string, texts []string) (any, error) {
	model := modelTag
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	reqs := make([]map[string]any, len(texts))
	for i, t := range texts {
		reqs[i] = map[string]any{
			"model":   model,
			"content": geminiContent{Parts: []geminiPart{{Text: llm.String(t)}}},
		}
	}
	return map[string]any{"requests": reqs}, nil
}

func (Gemini) EmbeddingURL(baseURL, modelTag, apiKey string) (string, error) {
	return fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", strings.TrimRight(baseURL, "/"), modelTag, url.QueryEscape(apiKey)), nil
}

func (Gemini) ParseEmbeddingResponse(raw []byte) ([][]float32, error) {
	var resp struct {
		Embeddings []struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, llm.ParseError("failed to parse Gemini embedding response: %v", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
