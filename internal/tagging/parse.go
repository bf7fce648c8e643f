package tagging

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParsePhrases extracts keyword phrases from raw model output. Models answer
// with anything from a clean comma list to a bulleted, numbered essay, so
// this strips list markers, splits on commas, trims decoration, drops
// too-short and too-long fragments, capitalizes the first letter and
// deduplicates case-insensitively while preserving output order.
func ParsePhrases(response string) []string {
	var cleanedLines []string
	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-*• \t")
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	text := strings.Join(cleanedLines, ", ")

	seen := make(map[string]bool)
	var phrases []string
	for _, raw := range strings.Split(text, ",") {
		phrase := strings.Trim(strings.TrimSpace(raw), `"'()[]{}`)
		phrase = strings.TrimSpace(phrase)
		if len(phrase) < 2 || len(phrase) > 50 {
			continue
		}
		phrase = capitalize(phrase)

		key := strings.ToLower(phrase)
		if seen[key] {
			continue
		}
		seen[key] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
