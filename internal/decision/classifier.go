package decision

import (
	"fmt"
	"strings"
)

// defaultSkipPhrases backs the "should retrieve" classifier when the
// caller's settings don't override it. A cheap pattern match, not a
// model call: an LLM round trip to decide whether to do retrieval
// defeats the purpose of skipping it.
var defaultSkipPhrases = []string{
	"hi", "hello", "hey", "thanks", "thank you", "ok", "okay",
	"got it", "sounds good", "cool", "great", "nice", "yep", "sure",
}

// shouldSkip decides whether retrieval is worth running at all: it is
// skipped when the message, after trimming, is empty; OR it is shorter
// than minQueryLength characters, contains no question mark, has at most
// three words, AND (ignoring case and trailing punctuation) equals one of
// the skip phrases or starts with one followed by a space or comma. An
// empty skipPhrases falls back to defaultSkipPhrases. A minQueryLength
// of zero or less turns the heuristic off, so only empty messages are
// skipped.
func shouldSkip(message string, minQueryLength int, skipPhrases []string) (bool, string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return true, "empty message"
	}

	if minQueryLength > 0 && len(trimmed) < minQueryLength && !strings.Contains(trimmed, "?") {
		phrases := skipPhrases
		if len(phrases) == 0 {
			phrases = defaultSkipPhrases
		}
		lower := strings.ToLower(trimmed)
		words := strings.Fields(lower)
		if len(words) <= 3 {
			stripped := strings.TrimRight(lower, "!.,;:")
			for _, p := range phrases {
				if stripped == p || strings.HasPrefix(stripped, p+" ") || strings.HasPrefix(stripped, p+",") {
					return true, fmt.Sprintf("greeting/acknowledgment heuristic matched %q", p)
				}
			}
		}
	}
	return false, ""
}
