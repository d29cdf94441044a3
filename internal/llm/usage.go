package llm

// Cost is the derived price of a call. Prices are per million tokens.
type Cost struct {
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`
	Total       float64 `json:"total"`
}

// Usage is the token accounting of one or more calls.
type Usage struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	Cost             *Cost `json:"cost,omitempty"`
}

// CalculateCost sets u.Cost from the given per-million-token prices.
func (u *Usage) CalculateCost(inputPrice, outputPrice float64) {
	in := float64(u.PromptTokens) / 1_000_000 * inputPrice
	out := float64(u.CompletionTokens) / 1_000_000 * outputPrice
	u.Cost = &Cost{
		InputPrice:  inputPrice,
		OutputPrice: outputPrice,
		Total:       in + out,
	}
}

// Add returns the sum of u and other. Token counts and cost totals are
// summed; the unit prices of u are kept, so the result is only exact when
// both operands were priced identically.
func (u Usage) Add(other Usage) Usage {
	out := Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
	switch {
	case u.Cost != nil && other.Cost != nil:
		out.Cost = &Cost{
			InputPrice:  u.Cost.InputPrice,
			OutputPrice: u.Cost.OutputPrice,
			Total:       u.Cost.Total + other.Cost.Total,
		}
	case u.Cost != nil:
		c := *u.Cost
		out.Cost = &c
	case other.Cost != nil:
		c := *other.Cost
		out.Cost = &c
	}
	return out
}

// Accumulate adds other into u in place.
func (u *Usage) Accumulate(other Usage) {
	*u = u.Add(other)
}
