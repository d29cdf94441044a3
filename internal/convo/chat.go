package convo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/usage"
)

// Engine is the part of engine.Engine a Chat needs.
type Engine interface {
	Call(ctx context.Context, messages []llm.Message) (*llm.ResponsePayload, error)
	Model() llm.ModelInfo
	HasTools() bool
	HasSchema() bool
}

// Chat appends turns to a conversation. Sends on one Chat are serialized.
type Chat struct {
	mu       sync.Mutex
	engine   Engine
	conv     *Conversation
	recorder usage.Recorder
}

// Option configures a Chat.
type Option func(*Chat)

// WithRecorder records one usage event per successful Send, keyed by the
// conversation id.
func WithRecorder(r usage.Recorder) Option {
	return func(c *Chat) { c.recorder = r }
}

// New starts a conversation on engine, opening with systemPrompt when it is
// not empty.
func New(engine Engine, systemPrompt string, opts ...Option) *Chat {
	conv := NewConversation(engine.Model().Name)
	if systemPrompt != "" {
		conv.Messages = append(conv.Messages, llm.SystemMessage(systemPrompt))
	}
	return Resume(engine, conv, opts...)
}

// Resume continues conv on engine. The engine's model may differ from the
// one the conversation started with.
func Resume(engine Engine, conv *Conversation, opts ...Option) *Chat {
	c := &Chat{engine: engine, conv: conv}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Conversation returns the underlying conversation.
func (c *Chat) Conversation() *Conversation {
	return c.conv
}

// Send runs one turn with prompt as the new user message and returns the
// assistant reply. The conversation only changes when the turn succeeds.
func (c *Chat) Send(ctx context.Context, prompt string) (llm.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user := llm.UserMessage(prompt)
	msgs := append(llm.CloneMessages(c.conv.Messages), user)

	resp, err := c.engine.Call(ctx, msgs)
	if err != nil {
		return llm.Message{}, err
	}
	reply, ok := resp.FirstMessage()
	if !ok {
		return llm.Message{}, errors.New("API response did not contain any messages")
	}

	c.conv.Messages = append(c.conv.Messages, user, reply)
	c.conv.UpdatedAt = time.Now().UTC()

	if resp.Usage != nil {
		usage.RecordQuietly(ctx, c.recorder, usage.Event{
			ID:        c.conv.ID,
			TaskLabel: c.label(),
			ModelName: c.conv.ModelName,
			Usage:     *resp.Usage,
		})
		c.conv.Usage.Accumulate(*resp.Usage)
	}
	return reply, nil
}

func (c *Chat) label() string {
	switch tools, schema := c.engine.HasTools(), c.engine.HasSchema(); {
	case tools && schema:
		return "convo with tools and schema"
	case tools:
		return "convo with tools"
	case schema:
		return "convo with schema"
	default:
		return "convo"
	}
}
