package subtitle

import (
	"errors"
	"strings"
)

// ErrInvalidMaxChars is returned when the chunk length bound is not positive.
var ErrInvalidMaxChars = errors.New("max chars must be a positive integer")

// breakRule marks the characters a chunk may end on. When after is set the
// character stays with the chunk, otherwise it is consumed by the split.
type breakRule struct {
	chars string
	after bool
}

// Ordered by preference: sentence end, clause, then ASCII or ideographic
// space. The first rule matching at a position wins.
var breakRules = []breakRule{
	{chars: "。！？…", after: true},
	{chars: "、", after: true},
	{chars: " \u3000", after: false},
}

// splitPoint returns where to cut when the rune at pos matches a rule.
func splitPoint(r rune, pos int) (int, bool) {
	for _, rule := range breakRules {
		if !strings.ContainsRune(rule.chars, r) {
			continue
		}
		if rule.after {
			return pos + 1, true
		}
		return pos, true
	}
	return 0, false
}

// SplitText splits text into chunks of at most maxChars code points,
// preferring the break closest to the limit. A chunk only exceeds the bound
// when it is the hard cut itself; blank input yields no chunks.
func SplitText(text string, maxChars int) ([]string, error) {
	if maxChars < 1 {
		return nil, ErrInvalidMaxChars
	}

	var chunks []string
	remaining := []rune(strings.TrimSpace(text))

	for len(remaining) > maxChars {
		cut := maxChars
		for i := maxChars - 1; i > 0; i-- {
			if p, ok := splitPoint(remaining[i], i); ok {
				cut = p
				break
			}
		}

		if chunk := strings.TrimSpace(string(remaining[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}

	if len(remaining) > 0 {
		chunks = append(chunks, string(remaining))
	}

	return chunks, nil
}
