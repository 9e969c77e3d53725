package retrieval

import (
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/utils"
)

const snippetSentences = 2

// ExtractSnippet picks up to two sentences of content that mention any of
// the (lowercased) query words, falling back to the first two sentences,
// and truncates the joined text to maxLength with "...".
func ExtractSnippet(content string, queryWords []string, maxLength int) string {
	sentences := SplitSentences(content)
	if len(sentences) == 0 {
		return ""
	}

	var picked []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, w := range queryWords {
			if w != "" && strings.Contains(lower, w) {
				picked = append(picked, s)
				break
			}
		}
		if len(picked) == snippetSentences {
			break
		}
	}
	if len(picked) == 0 {
		picked = sentences[:min(snippetSentences, len(sentences))]
	}

	if maxLength <= 0 {
		maxLength = DefaultSnippetMaxLength
	}
	return utils.Truncate(strings.Join(picked, " "), maxLength)
}

// SplitSentences splits text after '.', '!' and '?' and at line breaks,
// trimming whitespace and dropping empty pieces. Terminators stay attached.
func SplitSentences(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, r := range text {
		switch r {
		case '\n', '\r':
			flush()
		case '.', '!', '?':
			cur.WriteRune(r)
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
