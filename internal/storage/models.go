package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is a persisted chat session. Messages and usage are stored as
// JSON text.
type Conversation struct {
	ID           string
	ModelName    string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessagesJSON string
	UsageJSON    string
}

// UsageEvent is the token accounting of one call.
type UsageEvent struct {
	ID               int64
	RefID            string // job or conversation id
	TaskLabel        string
	ModelName        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	CreatedAt        time.Time
}

// UsageTotal aggregates usage events per model and label.
type UsageTotal struct {
	ModelName        string
	TaskLabel        string
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}
