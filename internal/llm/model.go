package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReasoningCapability describes how a model produces chain-of-thought.
type ReasoningCapability int

const (
	// ReasoningPromptInducible models reason only when prompted to.
	ReasoningPromptInducible ReasoningCapability = iota
	// ReasoningAlways models always emit reasoning.
	ReasoningAlways
	// ReasoningToggle models expose a provider switch for reasoning.
	ReasoningToggle
)

func (r ReasoningCapability) String() string {
	switch r {
	case ReasoningAlways:
		return "always"
	case ReasoningToggle:
		return "toggle"
	default:
		return "promptInducible"
	}
}

// ParseReasoningCapability accepts "always", "toggle" and "promptInducible"
// (case-insensitive). The empty string maps to ReasoningPromptInducible.
func ParseReasoningCapability(s string) (ReasoningCapability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "promptinducible", "prompt_inducible":
		return ReasoningPromptInducible, nil
	case "always":
		return ReasoningAlways, nil
	case "toggle":
		return ReasoningToggle, nil
	}
	return ReasoningPromptInducible, fmt.Errorf("unknown reasoning capability %q", s)
}

func (r ReasoningCapability) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ReasoningCapability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseReasoningCapability(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ModelInfo is a fully resolved registry entry: where to send requests for a
// model, how to authenticate, and how to price the result.
type ModelInfo struct {
	Name        string
	Provider    string
	ModelTag    string
	BaseURL     string
	APIKey      string
	InputPrice  float64
	OutputPrice float64
	TokenWindow int
	Reasoning   ReasoningCapability
	Dimensions  int
}
