// Package convo keeps multi-turn chat sessions: the conversation record, its
// file and database persistence, and the Chat that drives an engine with it.
package convo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/storage"
)

// DefaultTitle names conversations that were never renamed.
const DefaultTitle = "Untitled Conversation"

// Conversation is the persisted history of a chat.
type Conversation struct {
	ID        string        `json:"id"`
	ModelName string        `json:"model_name"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []llm.Message `json:"messages"`
	Usage     llm.Usage     `json:"usage"`
}

// NewConversation starts an empty conversation for modelName.
func NewConversation(modelName string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.NewString(),
		ModelName: modelName,
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []llm.Message{},
	}
}

// Load reads a conversation saved with Save.
func Load(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading conversation: %w", err)
	}
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing conversation %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the conversation as indented JSON and returns the file path.
// When path is an existing directory the file is named convo-<id>.json
// inside it; otherwise path is the file and missing parents are created.
func (c *Conversation) Save(path string) (string, error) {
	c.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding conversation: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "convo-"+c.ID+".json")
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating conversation directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing conversation: %w", err)
	}
	return path, nil
}

// Store persists conversations in a database.
type Store interface {
	SaveConversation(c storage.Conversation) error
	GetConversation(id string) (storage.Conversation, error)
}

// Persist saves c to s, refreshing UpdatedAt.
func (c *Conversation) Persist(s Store) error {
	c.UpdatedAt = time.Now().UTC()
	msgs, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	u, err := json.Marshal(c.Usage)
	if err != nil {
		return fmt.Errorf("encoding usage: %w", err)
	}
	return s.SaveConversation(storage.Conversation{
		ID:           c.ID,
		ModelName:    c.ModelName,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessagesJSON: string(msgs),
		UsageJSON:    string(u),
	})
}

// Fetch loads the conversation id from s. A missing id yields
// storage.ErrNotFound.
func Fetch(s Store, id string) (*Conversation, error) {
	rec, err := s.GetConversation(id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec)
}

// FromRecord decodes a stored conversation row.
func FromRecord(rec storage.Conversation) (*Conversation, error) {
	c := &Conversation{
		ID:        rec.ID,
		ModelName: rec.ModelName,
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(rec.MessagesJSON), &c.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(rec.UsageJSON), &c.Usage); err != nil {
		return nil, fmt.Errorf("decoding usage of %s: %w", rec.ID, err)
	}
	if c.Messages == nil {
		c.Messages = []llm.Message{}
	}
	return c, nil
}
