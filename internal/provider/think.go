package provider

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?is)<think>(.*)</think>`)

// extractThinking moves a <think>...</think> block out of content. It returns
// the remaining content and the trimmed reasoning, or nil reasoning when the
// content holds no think block.
func extractThinking(content string) (string, *string) {
	m := thinkBlock.FindStringSubmatchIndex(content)
	if m == nil {
		return content, nil
	}
	reasoning := strings.TrimSpace(content[m[2]:m[3]])
	rest := strings.TrimSpace(content[:m[0]] + content[m[1]:])
	return rest, &reasoning
}
