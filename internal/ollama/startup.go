package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotRunning is returned when the local Ollama server cannot be reached.
var ErrNotRunning = errors.New("Ollama is not running. Start it with: ollama serve")

// EnsureModels pulls every tag in tags that is not installed yet, writing
// progress to w. Tags already present are reported as ready.
func EnsureModels(ctx context.Context, c *Client, tags []string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return ErrNotRunning
	}

	installed, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing local models: %w", err)
	}

	for _, tag := range tags {
		if hasTag(installed, tag) {
			fmt.Fprintf(w, "model %s: ready\n", tag)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", tag)
		last := ""
		err := c.PullModel(ctx, tag, func(p PullProgress) {
			line := p.Status
			if p.Total > 0 {
				line = fmt.Sprintf("%s %.0f%%", p.Status, float64(p.Completed)/float64(p.Total)*100)
			}
			if line != last {
				fmt.Fprintf(w, "  %s\n", line)
				last = line
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", tag, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", tag)
	}
	return nil
}
