package lucky

import (
	"regexp"
	"strings"
)

// languagePatterns is ordered so that no alternative shadows a longer one
// ("json" before "js", "python" before "py").
var languagePatterns = []struct {
	lang    string
	pattern string
}{
	{"json", `(?i:json)`},
	{"python", `(?i:python|py)`},
	{"javascript", `(?i:javascript|js|node)`},
	{"rust", `(?i:rust|rs)`},
}

var codeTrailer = regexp.MustCompile("(\\s|`)*$")

// cleanCodeBlock strips markdown fences and a leading language tag from a
// code value. An unknown or empty lang matches any known language tag.
func cleanCodeBlock(field, lang string) string {
	pattern := ""
	for _, p := range languagePatterns {
		if p.lang == lang {
			pattern = p.pattern
			break
		}
	}
	if pattern == "" {
		alts := make([]string, len(languagePatterns))
		for i, p := range languagePatterns {
			alts[i] = p.pattern
		}
		pattern = "(" + strings.Join(alts, "|") + ")"
	}

	leader := regexp.MustCompile("^(\\s|`)*" + pattern + "?\\s*")
	out := leader.ReplaceAllString(field, "")
	return codeTrailer.ReplaceAllString(out, "")
}
