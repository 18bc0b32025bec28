package session

import (
	"regexp"
	"strings"
)

var spaces = regexp.MustCompile(`\s+`)

// WakeWord matches a wake token as a standalone word.
type WakeWord struct {
	word string
	re   *regexp.Regexp
}

func NewWakeWord(word string) WakeWord {
	w := strings.ToLower(strings.TrimSpace(word))
	return WakeWord{
		word: w,
		re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
	}
}

func (w WakeWord) String() string { return w.word }

// Detect reports whether text is the wake word, starts or ends with it, or
// carries it between two spaces.
func (w WakeWord) Detect(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == w.word ||
		strings.HasPrefix(t, w.word+" ") ||
		strings.HasSuffix(t, " "+w.word) ||
		strings.Contains(t, " "+w.word+" ")
}

// Strip removes whole-word occurrences of the wake word, so "sp speak up"
// becomes "speak up".
func (w WakeWord) Strip(text string) string {
	out := w.re.ReplaceAllString(text, "")
	return strings.TrimSpace(spaces.ReplaceAllString(out, " "))
}

// commandText is the command carried by an utterance. The wake word is only
// removed when the utterance itself contains it.
func (w WakeWord) commandText(text string) string {
	if w.Detect(text) {
		return w.Strip(text)
	}
	return strings.TrimSpace(text)
}
