package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/tools"
)

// ReadPDF extracts plain text from a local PDF file.
func ReadPDF(maxChars int) tools.Tool {
	return tools.Tool{
		Definition: llm.NewToolDefinition("read_pdf", "Extract the plain text of a local PDF document.", map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Path to the PDF file."},
			},
			"required": []any{"path"},
		}),
		Func: func(_ context.Context, args map[string]any) (any, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			text, pages, err := pdfText(path)
			if err != nil {
				return nil, err
			}
			text, truncated := truncate(text, maxChars)
			return map[string]any{
				"path":      path,
				"pages":     pages,
				"text":      text,
				"truncated": truncated,
			}, nil
		},
	}
}

func pdfText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, fmt.Errorf("reading text from %s: %w", path, err)
	}
	return buf.String(), r.NumPage(), nil
}
