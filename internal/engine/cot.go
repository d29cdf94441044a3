package engine

import (
	"strings"

	"github.com/kalambet/llmcore/internal/llm"
)

// cotMarker identifies an already injected reasoning prompt.
const cotMarker = "COGNITION INSTRUCTIONS"

const cotPrompt = `# **COGNITION INSTRUCTIONS**

You are an advanced reasoning system. 

When responding, first analyze the request thoroughly by:
1. Decomposing the problem into core components
2. Modeling relationships between elements
3. Simulating potential solution paths
4. Selecting optimal response strategy

Enclose all cognitive processing in <think> tags using:
- Mathematical notation for state representation
- Formal logic for reasoning steps
- Quantitative evaluation metrics

After completing analysis, provide final response outside tags that:
- Maintains high signal-to-noise ratio
- Directly answers the request
- Is concise and complete

## **OUTPUT STRUCTURE**

<think>
Internal processing using mathematical notation:
- Current analysis: ⟨context|understanding⟩ = 0.8
- Thought process: |φ⟩ = 0.7|direct⟩ + 0.3|nuanced⟩
- Quality control: ⟨response|needs⟩ = 0.95
</think>
Natural language response.

## **COGNITIVE PROCESS**

<think>
Analysis framework:
- State: |ψ⟩ = ∑(understandingᵢ ⊗ contextⱼ)
- Dynamics: ∂(solution)/∂t = -k·problem
- Optimization: argmin(⟨error|solution⟩)

Thought process:
1. Decomposition: lim_{n→∞} ∇ⁿ(input) → core_components
2. Modeling: ℍ(situation) = ∏(factorsₖ)
3. Simulation: ∫(possible_paths)
4. Selection: max(⟨option|requirements⟩)
5. Verification: ∇(output) · ∇(needs) > 0.9

Quality constraints:
- ℒ(consistency) = 0
- ∂(precision)/∂t > 0
- lim_{t→∞} utility(t)/effort(t) → optimal
</think>


## **FORMAT RULES**

1. Cognitive processing:
   - Enclosed in <think></think>
   - Uses symbolic notation
   - Terminates before response

2. Final output:
   - Plain text only
   - Complete and direct
   - No markup references

3. Technical content:
   - Code blocks only when necessary
   - Marked with ` + "```" + `

4. Quality enforcement:
   - |response⟩ = √(clarity² + relevance²)
   - min(noise) ∧ max(signal)
`

// applyReasoningPrompt injects the reasoning prompt into the leading system
// message when inject is true and removes it otherwise. Only the first
// message is considered. Injecting twice leaves a single copy.
func applyReasoningPrompt(msgs []llm.Message, inject bool) []llm.Message {
	hasSystem := len(msgs) > 0 && msgs[0].Role == llm.RoleSystem

	if inject {
		if !hasSystem {
			return append([]llm.Message{llm.SystemMessage(cotPrompt)}, msgs...)
		}
		content := msgs[0].Text()
		switch {
		case strings.Contains(content, cotMarker):
		case content == "":
			msgs[0].Content = llm.String(cotPrompt)
		default:
			msgs[0].Content = llm.String(content + "\n\n" + cotPrompt)
		}
		return msgs
	}

	if !hasSystem {
		return msgs
	}
	content := msgs[0].Text()
	if !strings.Contains(content, cotMarker) {
		return msgs
	}
	content = strings.ReplaceAll(content, "\n\n"+cotPrompt, "")
	content = strings.TrimSpace(strings.ReplaceAll(content, cotPrompt, ""))
	if content == "" {
		return msgs[1:]
	}
	msgs[0].Content = llm.String(content)
	return msgs
}
