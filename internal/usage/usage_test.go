package usage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
)

func priced(prompt, completion int, total float64) llm.Usage {
	return llm.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Cost:             &llm.Cost{InputPrice: 1, OutputPrice: 1, Total: total},
	}
}

func TestJSONFileRecorderLayout(t *testing.T) {
	dir := t.TempDir()
	r := NewJSONFileRecorder(dir)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 14, 25, 0, 0, time.UTC)

	require.NoError(t, r.Record(ctx, Event{ID: "job-1", TaskLabel: "chat_turn", ModelName: "GPT", Usage: priced(10, 5, 0.1), At: at}))
	require.NoError(t, r.Record(ctx, Event{ID: "job-1", TaskLabel: "convo", ModelName: "GPT", Usage: priced(1, 1, 0.2), At: at.Add(10 * time.Minute)}))
	require.NoError(t, r.Record(ctx, Event{ID: "job-2", TaskLabel: "chat_turn", ModelName: "GPT", Usage: priced(2, 2, 0.3), At: at.Add(time.Hour)}))

	data, err := os.ReadFile(r.Path())
	require.NoError(t, err)
	var doc map[string]map[string]map[string]struct {
		TaskLabel string      `json:"task_label"`
		ModelName string      `json:"model_name"`
		Events    []llm.Usage `json:"events"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	entry := doc["2025-06-01"]["14:00"]["job-1"]
	assert.Equal(t, "convo", entry.TaskLabel, "label follows the latest event")
	assert.Len(t, entry.Events, 2)
	assert.Len(t, doc["2025-06-01"]["15:00"]["job-2"].Events, 1)
}

func TestJSONFileRecorderTotals(t *testing.T) {
	r := NewJSONFileRecorder(t.TempDir())
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.Record(ctx, Event{ID: "a", TaskLabel: "chat_turn", ModelName: "M", Usage: priced(10, 5, 0.5), At: now.Add(-72 * time.Hour)}))
	require.NoError(t, r.Record(ctx, Event{ID: "b", TaskLabel: "chat_turn", ModelName: "M", Usage: priced(1, 2, 0.25), At: now}))
	require.NoError(t, r.Record(ctx, Event{ID: "b", TaskLabel: "chat_turn", ModelName: "M", Usage: priced(3, 4, 0.25), At: now}))

	totals, err := r.Totals(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, 2, totals[0].Calls)
	assert.Equal(t, 10, totals[0].TotalTokens)
	assert.InDelta(t, 0.5, totals[0].Cost, 1e-9)

	empty, err := NewJSONFileRecorder(t.TempDir()).Totals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreRecorder(t *testing.T) {
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := NewStoreRecorder(s)
	ctx := context.Background()
	require.NoError(t, r.Record(ctx, Event{ID: "j", TaskLabel: "chat_turn", ModelName: "M", Usage: priced(4, 6, 1.5), At: time.Now()}))
	require.NoError(t, r.Record(ctx, Event{ID: "j", TaskLabel: "chat_turn", ModelName: "M", Usage: llm.Usage{TotalTokens: 2}, At: time.Now()}))

	totals, err := r.Totals(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, Total{ModelName: "M", TaskLabel: "chat_turn", Calls: 2, PromptTokens: 4, CompletionTokens: 6, TotalTokens: 12, Cost: 1.5}, totals[0])
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, Event) error { return errors.New("disk full") }

func TestMultiAndQuiet(t *testing.T) {
	dir := t.TempDir()
	file := NewJSONFileRecorder(dir)
	m := Multi{failingRecorder{}, file}

	err := m.Record(context.Background(), Event{ID: "x", TaskLabel: "l", ModelName: "m", At: time.Now()})
	assert.ErrorContains(t, err, "disk full")
	_, statErr := os.Stat(file.Path())
	assert.NoError(t, statErr, "later recorders still run")

	RecordQuietly(context.Background(), m, Event{ID: "y"})
	RecordQuietly(context.Background(), nil, Event{ID: "z"})
}
