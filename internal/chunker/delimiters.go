package chunker

import (
	"regexp"
	"sort"
	"strings"
)

var quotedDelimiter = regexp.MustCompile("`([^`]+)`")

// ParseDelimiters expands a delimiter specification into an ordered list.
// Backtick-quoted runs are multi-character delimiters; every other character
// is a delimiter of its own. The result is sorted longest first so that a
// multi-character delimiter wins over any single character it contains.
//
//	ParseDelimiters("\n。`##`；") // ["##", "\n", "。", "；"]
func ParseDelimiters(spec string) []string {
	var dels []string
	start := 0
	for _, m := range quotedDelimiter.FindAllStringSubmatchIndex(spec, -1) {
		dels = append(dels, splitChars(spec[start:m[0]])...)
		dels = append(dels, spec[m[2]:m[3]])
		start = m[1]
	}
	dels = append(dels, splitChars(spec[start:])...)

	seen := make(map[string]struct{}, len(dels))
	out := dels[:0]
	for _, d := range dels {
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len([]rune(out[i])) > len([]rune(out[j]))
	})
	return out
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// DelimiterPattern compiles delimiters into one alternation, longest first
func DelimiterPattern(dels []string) *regexp.Regexp {
	quoted := make([]string, 0, len(dels))
	for _, d := range dels {
		if d != "" {
			quoted = append(quoted, regexp.QuoteMeta(d))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

// splitKeep cuts text after every occurrence of delim. The delimiter stays
// at the end of the piece it closes, so joining the pieces gives back text.
// Occurrences inside an embedded position tag are ignored.
func splitKeep(text, delim string) []string {
	if delim == "" {
		return []string{text}
	}

	spans := tagSpans(text)
	inTag := func(at int) bool {
		for _, s := range spans {
			if at >= s[0] && at < s[1] {
				return true
			}
		}
		return false
	}

	var pieces []string
	start, from := 0, 0
	for {
		i := strings.Index(text[from:], delim)
		if i < 0 {
			break
		}
		at := from + i
		end := at + len(delim)
		from = end
		if inTag(at) {
			continue
		}
		pieces = append(pieces, text[start:end])
		start = end
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	if len(pieces) == 0 {
		return []string{text}
	}
	return pieces
}
