package tokenizer

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/siongui/gojianfan"
	"golang.org/x/text/width"
)

var (
	numericRe   = regexp.MustCompile(`^[0-9,.-]+$`)
	latinWordRe = regexp.MustCompile(`^[a-z.-]+$`)
)

// maxFineGrainedRunes bounds the words fine-grained segmentation will split
const maxFineGrainedRunes = 10

// Tokenizer segments mixed CJK/Latin text against a Dictionary.
// It is read-only and safe for concurrent use.
type Tokenizer struct {
	dict *Dictionary
}

// New creates a tokenizer; a nil dictionary behaves as empty
func New(dict *Dictionary) *Tokenizer {
	if dict == nil {
		dict = EmptyDictionary()
	}
	return &Tokenizer{dict: dict}
}

// Dictionary returns the backing dictionary
func (t *Tokenizer) Dictionary() *Dictionary {
	return t.dict
}

// Freq returns the dictionary frequency of a token
func (t *Tokenizer) Freq(tk string) int {
	return t.dict.Freq(tk)
}

// Tag returns the dictionary part-of-speech tag of a token
func (t *Tokenizer) Tag(tk string) string {
	return t.dict.Tag(tk)
}

// Normalize folds full-width characters to half-width, lowercases,
// and converts traditional Chinese to simplified.
func Normalize(text string) string {
	text = width.Fold.String(text)
	text = strings.ToLower(text)
	return gojianfan.T2S(text)
}

// Tokenize normalizes text and splits it into tokens. Punctuation is dropped,
// Latin runs split on whitespace, and CJK runs are segmented by maximum
// probability over the dictionary.
func (t *Tokenizer) Tokenize(text string) []string {
	text = Normalize(stripNonWord(text))

	var tokens []string
	for _, field := range strings.Fields(text) {
		for _, run := range scriptRuns(field) {
			if isCJK(firstRune(run)) {
				tokens = append(tokens, t.segment([]rune(run), false)...)
				continue
			}
			tokens = append(tokens, run)
		}
	}
	return tokens
}

// FineGrained re-segments coarse tokens into their dictionary sub-words.
// Tokens that are short, numeric, very long, or cannot be split into
// anything but single characters are kept whole.
func (t *Tokenizer) FineGrained(tokens []string) []string {
	var zh int
	for _, tk := range tokens {
		if tk != "" && isCJK(firstRune(tk)) {
			zh++
		}
	}
	if float64(zh) < float64(len(tokens))*0.2 {
		var res []string
		for _, tk := range tokens {
			res = append(res, strings.Split(tk, "/")...)
		}
		return res
	}

	res := make([]string, 0, len(tokens))
	for _, tk := range tokens {
		n := utf8.RuneCountInString(tk)
		if n < 3 || numericRe.MatchString(tk) || n > maxFineGrainedRunes {
			res = append(res, tk)
			continue
		}
		parts := t.segment([]rune(tk), true)
		if len(parts) == n || len(parts) < 2 {
			res = append(res, tk)
			continue
		}
		if latinWordRe.MatchString(tk) && hasShortPart(parts) {
			res = append(res, tk)
			continue
		}
		res = append(res, parts...)
	}
	return res
}

// NumTokens is the length measure used for chunk budgets
func (t *Tokenizer) NumTokens(text string) int {
	return len(t.Tokenize(text))
}

// segment runs max-probability segmentation over a rune slice. When
// excludeWhole is set the full-span reading is not a candidate, forcing a split.
func (t *Tokenizer) segment(runes []rune, excludeWhole bool) []string {
	n := len(runes)
	if n == 0 {
		return nil
	}

	// best[i] is the best score of runes[i:], next[i] the end of its first word
	best := make([]float64, n+1)
	next := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		best[i] = math.Inf(-1)
		for j := i + 1; j <= n; j++ {
			if excludeWhole && i == 0 && j == n {
				break
			}
			word := string(runes[i:j])
			if j > i+1 {
				if !t.dict.HasPrefix(word) {
					break
				}
				if !t.dict.Contains(word) {
					continue
				}
			}
			score := t.dict.logProb(word) + best[j]
			if score > best[i] {
				best[i] = score
				next[i] = j
			}
		}
	}

	var out []string
	for i := 0; i < n; i = next[i] {
		out = append(out, string(runes[i:next[i]]))
	}
	return out
}

// stripNonWord replaces runs of characters that are neither letters,
// digits, nor underscores with a single space.
func stripNonWord(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return b.String()
}

// scriptRuns splits a whitespace-free field into alternating CJK and non-CJK runs
func scriptRuns(field string) []string {
	var runs []string
	start := 0
	prev := false
	for i, r := range field {
		cur := isCJK(r)
		if i > 0 && cur != prev {
			runs = append(runs, field[start:i])
			start = i
		}
		prev = cur
	}
	if start < len(field) {
		runs = append(runs, field[start:])
	}
	return runs
}

func hasShortPart(parts []string) bool {
	for _, p := range parts {
		if utf8.RuneCountInString(p) < 3 {
			return true
		}
	}
	return false
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// isCJK reports whether r belongs to an ideographic or kana/hangul script
func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// IsChineseRune reports whether r is in the basic CJK unified ideograph block
func IsChineseRune(r rune) bool {
	return r >= '一' && r <= '龥'
}

// IsChinese reports whether s contains at least one Chinese ideograph
func IsChinese(s string) bool {
	for _, r := range s {
		if IsChineseRune(r) {
			return true
		}
	}
	return false
}
