package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
)

// FileName is the usage log written by JSONFileRecorder.
const FileName = "usage.json"

type fileEntry struct {
	TaskLabel string      `json:"task_label"`
	ModelName string      `json:"model_name"`
	Events    []llm.Usage `json:"events"`
}

// day -> "HH:00" -> id -> entry
type fileLog map[string]map[string]map[string]*fileEntry

// JSONFileRecorder keeps usage in a single JSON document grouped by UTC day,
// hour and job id. Writers in one process are serialized; concurrent
// processes are not coordinated.
type JSONFileRecorder struct {
	mu   sync.Mutex
	path string
}

// NewJSONFileRecorder returns a recorder writing dir/usage.json.
func NewJSONFileRecorder(dir string) *JSONFileRecorder {
	return &JSONFileRecorder{path: filepath.Join(dir, FileName)}
}

// Path returns the location of the usage file.
func (r *JSONFileRecorder) Path() string { return r.path }

func (r *JSONFileRecorder) Record(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, err := r.load()
	if err != nil {
		return err
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	day, hour := at.Format("2006-01-02"), at.Format("15")+":00"

	if log[day] == nil {
		log[day] = map[string]map[string]*fileEntry{}
	}
	if log[day][hour] == nil {
		log[day][hour] = map[string]*fileEntry{}
	}
	entry := log[day][hour][ev.ID]
	if entry == nil {
		entry = &fileEntry{Events: []llm.Usage{}}
		log[day][hour][ev.ID] = entry
	}
	entry.TaskLabel = ev.TaskLabel
	entry.ModelName = ev.ModelName
	entry.Events = append(entry.Events, ev.Usage)

	return r.save(log)
}

// Totals sums the events of every entry whose hour starts at or after since,
// truncated to the hour.
func (r *JSONFileRecorder) Totals(_ context.Context, since time.Time) ([]Total, error) {
	r.mu.Lock()
	log, err := r.load()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	cutoff := since.UTC().Truncate(time.Hour)
	byKey := map[[2]string]*Total{}
	for day, hours := range log {
		for hour, entries := range hours {
			start, err := time.Parse("2006-01-02 15:04", day+" "+hour)
			if err != nil {
				return nil, fmt.Errorf("usage file %s: bad bucket %s %s: %w", r.path, day, hour, err)
			}
			if start.Before(cutoff) {
				continue
			}
			for _, e := range entries {
				key := [2]string{e.ModelName, e.TaskLabel}
				t := byKey[key]
				if t == nil {
					t = &Total{ModelName: e.ModelName, TaskLabel: e.TaskLabel}
					byKey[key] = t
				}
				for _, u := range e.Events {
					t.Calls++
					t.PromptTokens += u.PromptTokens
					t.CompletionTokens += u.CompletionTokens
					t.TotalTokens += u.TotalTokens
					t.Cost += cost(u)
				}
			}
		}
	}

	out := make([]Total, 0, len(byKey))
	for _, t := range byKey {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelName != out[j].ModelName {
			return out[i].ModelName < out[j].ModelName
		}
		return out[i].TaskLabel < out[j].TaskLabel
	})
	return out, nil
}

func (r *JSONFileRecorder) load() (fileLog, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading usage file: %w", err)
	}
	log := fileLog{}
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parsing usage file %s: %w", r.path, err)
	}
	return log, nil
}

func (r *JSONFileRecorder) save(log fileLog) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating usage directory: %w", err)
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding usage: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing usage file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing usage file: %w", err)
	}
	return nil
}
