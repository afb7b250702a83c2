// Package extract recovers chart specifications and datasets embedded in
// partially streamed model output.
package extract

import (
	"strings"
)

const fence = "```"

// candidate is one balanced JSON-looking region of the input.
type candidate struct {
	raw   string
	value any
}

// acceptFunc decodes and validates a candidate region.
type acceptFunc func(raw string) (any, bool)

// balancedEnd returns the index just past the bracket that closes the opener
// at text[start], or -1 if the region is not closed yet. Brackets inside
// JSON string literals are ignored; backslash escapes are honoured.
func balancedEnd(text string, start int) int {
	open := text[start]
	var closer byte
	switch open {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return -1
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// fencedCandidates returns the accepted bodies of fenced blocks of the form
// ```<tag>? <ws> <balanced region> <ws> ```, in order of appearance.
func fencedCandidates(text string, open byte, tags []string, accept acceptFunc) []candidate {
	var out []candidate
	for pos := 0; pos < len(text); {
		idx := strings.Index(text[pos:], fence)
		if idx < 0 {
			break
		}
		start := pos + idx

		bodyStart, bodyEnd, next, ok := matchFence(text, start, open, tags)
		if !ok {
			pos = start + 1
			continue
		}
		raw := text[bodyStart:bodyEnd]
		if value, ok := accept(raw); ok {
			out = append(out, candidate{raw: raw, value: value})
		}
		pos = next
	}
	return out
}

// matchFence tries to match a complete fenced block opening at text[start].
// It returns the body bounds and the index just past the closing fence.
func matchFence(text string, start int, open byte, tags []string) (int, int, int, bool) {
	i := start + len(fence)
	for _, tag := range tags {
		if strings.HasPrefix(text[i:], tag) {
			rest := skipSpace(text, i+len(tag))
			if rest < len(text) && text[rest] == open {
				i += len(tag)
				break
			}
		}
	}
	i = skipSpace(text, i)
	if i >= len(text) || text[i] != open {
		return 0, 0, 0, false
	}

	end := balancedEnd(text, i)
	if end < 0 {
		return 0, 0, 0, false
	}

	closeAt := skipSpace(text, end)
	if !strings.HasPrefix(text[closeAt:], fence) {
		return 0, 0, 0, false
	}
	return i, end, closeAt + len(fence), true
}

// rawCandidates returns every accepted balanced region in text, ignoring
// fences. After an accepted region the scan resumes past its end; otherwise
// it resumes one byte after the opener so nested regions are still tried.
func rawCandidates(text string, open byte, accept acceptFunc) []candidate {
	var out []candidate
	for pos := 0; pos < len(text); {
		idx := strings.IndexByte(text[pos:], open)
		if idx < 0 {
			break
		}
		start := pos + idx

		end := balancedEnd(text, start)
		if end < 0 {
			pos = start + 1
			continue
		}
		raw := text[start:end]
		if value, ok := accept(raw); ok {
			out = append(out, candidate{raw: raw, value: value})
			pos = end
			continue
		}
		pos = start + 1
	}
	return out
}

// longest picks the candidate with the longest raw text; the first one wins ties.
func longest(cands []candidate) (candidate, bool) {
	var best candidate
	found := false
	for _, c := range cands {
		if !found || len(c.raw) > len(best.raw) {
			best = c
			found = true
		}
	}
	return best, found
}

// search runs the fenced tier and falls back to the raw tier when the fenced
// tier yields no valid candidate.
func search(text string, open byte, tags []string, accept acceptFunc) (any, bool) {
	if text == "" {
		return nil, false
	}
	if best, ok := longest(fencedCandidates(text, open, tags, accept)); ok {
		return best.value, true
	}
	if best, ok := longest(rawCandidates(text, open, accept)); ok {
		return best.value, true
	}
	return nil, false
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i++
		default:
			return i
		}
	}
	return i
}
