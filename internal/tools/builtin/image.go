package builtin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/tools"
)

// GenerateImage renders an image with gen and writes it to disk. Without an
// output_path the file lands in dir under a generated name.
func GenerateImage(gen ImageGenerator, model, dir string) tools.Tool {
	return tools.Tool{
		Definition: llm.NewToolDefinition("generate_image", "Generate an image from a text prompt and save it to a file.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The text prompt for generating the image.",
				},
				"output_path": map[string]any{
					"type":        "string",
					"description": "Optional. The full path, including filename and extension (e.g., 'images/lion.png'), where the image should be saved.",
				},
			},
			"required": []any{"prompt"},
		}),
		Func: func(ctx context.Context, args map[string]any) (any, error) {
			prompt, err := stringArg(args, "prompt")
			if err != nil {
				return nil, err
			}
			res, err := gen.GenerateImage(ctx, prompt, model)
			if err != nil {
				return nil, err
			}
			if res.ImageB64 == "" {
				return nil, errors.New("no image data received from the API")
			}
			data, err := base64.StdEncoding.DecodeString(res.ImageB64)
			if err != nil {
				return nil, fmt.Errorf("decoding image data: %w", err)
			}

			path, _ := args["output_path"].(string)
			if path == "" {
				path = filepath.Join(dir, "image_"+uuid.NewString()[:8]+".png")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating image directory: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, fmt.Errorf("writing image: %w", err)
			}
			return map[string]any{
				"text_response": res.Text,
				"image_path":    path,
			}, nil
		},
	}
}
