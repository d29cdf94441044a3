// Package builtin provides the tools that ship with llmcore.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/provider"
	"github.com/kalambet/llmcore/internal/tools"
)

// ImageGenerator produces an image for a prompt using the named model.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, model string) (*provider.ImageResult, error)
}

// Options configures the builtin library.
type Options struct {
	// Images enables generate_image when set.
	Images     ImageGenerator
	ImageModel string
	ImageDir   string

	// MaxChars bounds the text returned by read_pdf and fetch_url.
	MaxChars int
}

const defaultMaxChars = 20000

// Library returns every builtin tool enabled by opts.
func Library(opts Options) *tools.Library {
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultMaxChars
	}
	ts := []tools.Tool{
		CurrentTime(time.Now),
		ReadPDF(opts.MaxChars),
		FetchURL(nil, opts.MaxChars),
	}
	if opts.Images != nil && opts.ImageModel != "" {
		ts = append(ts, GenerateImage(opts.Images, opts.ImageModel, opts.ImageDir))
	}
	return tools.NewLibrary(ts...)
}

// CurrentTime reports the local time.
func CurrentTime(now func() time.Time) tools.Tool {
	return tools.Tool{
		Definition: llm.NewToolDefinition("get_current_time", "Get the current time.", map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}),
		Func: func(context.Context, map[string]any) (any, error) {
			return map[string]any{"time": now().Format("3:04 PM on Monday, 1/2/2006")}, nil
		},
	}
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing '%s' in arguments", name)
	}
	return v, nil
}

func truncate(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
