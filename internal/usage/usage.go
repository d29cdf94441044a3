// Package usage records the token accounting of model calls.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
)

// Event is the usage of one call, attributed to a job or conversation.
type Event struct {
	ID        string
	TaskLabel string
	ModelName string
	Usage     llm.Usage
	At        time.Time
}

// Recorder persists usage events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Total aggregates usage per model and label.
type Total struct {
	ModelName        string  `json:"model_name"`
	TaskLabel        string  `json:"task_label"`
	Calls            int     `json:"calls"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// Reporter summarizes recorded usage.
type Reporter interface {
	Totals(ctx context.Context, since time.Time) ([]Total, error)
}

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordQuietly records ev on r and logs a failure instead of returning it.
// A nil recorder is a no-op.
func RecordQuietly(ctx context.Context, r Recorder, ev Event) {
	if r == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := r.Record(ctx, ev); err != nil {
		slog.Warn("failed to log usage", "label", ev.TaskLabel, "id", ev.ID, "error", err)
	}
}

func cost(u llm.Usage) float64 {
	if u.Cost == nil {
		return 0
	}
	return u.Cost.Total
}
