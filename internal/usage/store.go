package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/llmcore/internal/storage"
)

// StoreRecorder writes usage events to the SQLite store.
type StoreRecorder struct {
	store *storage.Store
}

func NewStoreRecorder(s *storage.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) Record(_ context.Context, ev Event) error {
	err := r.store.InsertUsageEvent(storage.UsageEvent{
		RefID:            ev.ID,
		TaskLabel:        ev.TaskLabel,
		ModelName:        ev.ModelName,
		PromptTokens:     ev.Usage.PromptTokens,
		CompletionTokens: ev.Usage.CompletionTokens,
		TotalTokens:      ev.Usage.TotalTokens,
		Cost:             cost(ev.Usage),
		CreatedAt:        ev.At,
	})
	if err != nil {
		return fmt.Errorf("storing usage event: %w", err)
	}
	return nil
}

func (r *StoreRecorder) Totals(_ context.Context, since time.Time) ([]Total, error) {
	rows, err := r.store.UsageTotals(since)
	if err != nil {
		return nil, fmt.Errorf("querying usage totals: %w", err)
	}
	out := make([]Total, len(rows))
	for i, t := range rows {
		out[i] = Total{
			ModelName:        t.ModelName,
			TaskLabel:        t.TaskLabel,
			Calls:            t.Calls,
			PromptTokens:     t.PromptTokens,
			CompletionTokens: t.CompletionTokens,
			TotalTokens:      t.TotalTokens,
			Cost:             t.Cost,
		}
	}
	return out, nil
}
