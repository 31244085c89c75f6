package streaming

import "strings"

var sentenceEnders = map[byte]bool{'.': true, '!': true, '?': true}
var clauseEnders = map[byte]bool{',': true, ':': true, ';': true}

// SplitAtBreakpoint implements the break-point rule used by the
// token-streaming client variant when a chunk must be split: search
// right-to-left for sentence-ending punctuation, then clause punctuation,
// then a space, else break at the end of the buffer.
func SplitAtBreakpoint(text string) (head, rest string) {
	if idx := lastBoundary(text, sentenceEnders); idx >= 0 {
		return strings.TrimSpace(text[:idx]), text[idx:]
	}
	if idx := lastBoundary(text, clauseEnders); idx >= 0 {
		return strings.TrimSpace(text[:idx]), text[idx:]
	}
	if idx := strings.LastIndexByte(text, ' '); idx >= 0 {
		return strings.TrimSpace(text[:idx]), text[idx:]
	}
	return text, ""
}

func lastBoundary(text string, enders map[byte]bool) int {
	lastIdx := -1
	for i := 0; i < len(text); i++ {
		if enders[text[i]] {
			lastIdx = i + 1
		}
	}
	return lastIdx
}
