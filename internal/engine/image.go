package engine

import (
	"context"
	"fmt"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/provider"
	"github.com/kalambet/llmcore/internal/transport"
)

// GenerateImage asks the registry model imageModel for an image described by
// prompt. It needs a registry attached with WithModels and a provider with
// image support.
func (e *Engine) GenerateImage(ctx context.Context, prompt, imageModel string) (*provider.ImageResult, error) {
	if e.models == nil {
		return nil, llm.ConfigError("no model registry attached for image generation")
	}
	info, err := e.models.Lookup(imageModel)
	if err != nil {
		return nil, err
	}

	p := provider.For(info.Provider)
	url, err := p.ImageURL(info.BaseURL, info.ModelTag, info.APIKey)
	if err != nil {
		return nil, fmt.Errorf("image generation with %s: %w", info.Name, err)
	}
	body, err := p.PrepareImageRequest(prompt, info.ModelTag)
	if err != nil {
		return nil, fmt.Errorf("image generation with %s: %w", info.Name, err)
	}

	raw, err := e.client.Do(ctx, transport.Request{
		URL:    url,
		Header: p.RequestHeaders(info.APIKey),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return p.ParseImageResponse(raw)
}
