package termweight

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/ragcore/internal/tokenizer"
	"github.com/dshills/ragcore/pkg/types"
)

const (
	// freqCorpusSize is N for the raw-frequency idf
	freqCorpusSize = 10_000_000
	// docCorpusSize is N for the document-frequency idf
	docCorpusSize = 1_000_000_000

	// mergeWindow is the longest run of short terms joined into one compound
	mergeWindow = 4
)

var (
	punctRe       = regexp.MustCompile("^[~—\t @#%!<>,\\.\\?\":;'\\{\\}\\[\\]_=\\(\\)\\|，。？》•●○↓《；‘’：“”【¥ 】…￥！、·（）×`&\\\\/「」\\\\]")
	singleDigitRe = regexp.MustCompile(`^[0-9]$`)
	shortAlnumRe  = regexp.MustCompile(`^[0-9a-z]{1,2}$`)
	alnumStartRe  = regexp.MustCompile(`^[0-9a-zA-Z]`)
	spacesRe      = regexp.MustCompile(`[ \t]+`)
	letterEndRe   = regexp.MustCompile(`[a-zA-Z]$`)

	nerNumericRe = regexp.MustCompile(`^[0-9,.]{2,}$`)
	nerShortRe   = regexp.MustCompile(`^[a-z]{1,2}$`)
	numSpaceRe   = regexp.MustCompile(`^[0-9. -]{2,}$`)
	latinRe      = regexp.MustCompile(`^[a-z. -]+$`)
	numericRe    = regexp.MustCompile(`^[0-9-]+`)
)

// Dealer computes term weights from frequency, document-frequency,
// entity and part-of-speech signals. The tables are read-only after
// construction so a Dealer is safe for concurrent use.
type Dealer struct {
	tok *tokenizer.Tokenizer
	ne  map[string]string
	df  map[string]int
}

// NewDealer creates a dealer; nil tables behave as empty
func NewDealer(tok *tokenizer.Tokenizer, ne map[string]string, df map[string]int) *Dealer {
	if tok == nil {
		tok = tokenizer.New(nil)
	}
	if ne == nil {
		ne = map[string]string{}
	}
	if df == nil {
		df = map[string]int{}
	}
	return &Dealer{tok: tok, ne: ne, df: df}
}

// Tokenizer returns the tokenizer backing this dealer
func (d *Dealer) Tokenizer() *tokenizer.Tokenizer {
	return d.tok
}

// Ner returns the entity class of a term, "" when unknown
func (d *Dealer) Ner(t string) string {
	return d.ne[t]
}

// Pretoken tokenizes text and drops stopwords (when filterStopwords),
// stray single digits (unless keepNumbers) and punctuation tokens.
func (d *Dealer) Pretoken(text string, keepNumbers, filterStopwords bool) []string {
	var res []string
	for _, tk := range d.tok.Tokenize(text) {
		if filterStopwords && IsStopword(tk) {
			continue
		}
		if !keepNumbers && singleDigitRe.MatchString(tk) {
			continue
		}
		if punctRe.MatchString(tk) {
			continue
		}
		if tk != "" {
			res = append(res, tk)
		}
	}
	return res
}

// oneTerm reports whether tk is short enough to be merged with its neighbours
func oneTerm(tk string) bool {
	return utf8.RuneCountInString(tk) == 1 || shortAlnumRe.MatchString(tk)
}

// TokenMerge joins runs of short non-stopword terms into space-separated
// compounds. Runs of 2..4 terms become one compound; longer runs are merged
// pairwise so no compound holds more than mergeWindow terms.
func (d *Dealer) TokenMerge(tks []string) []string {
	var res []string
	i := 0
	for i < len(tks) {
		if i == 0 && len(tks) > 1 && oneTerm(tks[0]) &&
			utf8.RuneCountInString(tks[1]) > 1 && !alnumStartRe.MatchString(tks[1]) {
			res = append(res, tks[0]+" "+tks[1])
			i = 2
			continue
		}

		j := i
		for j < len(tks) && tks[j] != "" && !IsStopword(tks[j]) && oneTerm(tks[j]) {
			j++
		}

		switch n := j - i; {
		case n > 1 && n <= mergeWindow:
			res = append(res, strings.Join(tks[i:j], " "))
			i = j
		case n > mergeWindow:
			for k := i; k < j; k += 2 {
				if k+1 < j {
					res = append(res, tks[k]+" "+tks[k+1])
				} else {
					res = append(res, tks[k])
				}
			}
			i = j
		default:
			if tks[i] != "" {
				res = append(res, tks[i])
			}
			i++
		}
	}
	return res
}

// Split collapses whitespace and rejoins adjacent terms that both end in a
// Latin letter, unless either is tagged as a function-word entity.
func (d *Dealer) Split(text string) []string {
	text = strings.TrimSpace(spacesRe.ReplaceAllString(text, " "))
	var tks []string
	for _, t := range strings.Split(text, " ") {
		if t == "" {
			continue
		}
		if n := len(tks); n > 0 {
			prev := tks[n-1]
			if letterEndRe.MatchString(prev) && letterEndRe.MatchString(t) &&
				d.ne[prev] != "func" && d.ne[t] != "func" {
				tks[n-1] = prev + " " + t
				continue
			}
		}
		tks = append(tks, t)
	}
	return tks
}

// Weights scores each term and normalizes the batch to sum to 1. With
// preprocess each input term is first re-tokenized via Pretoken and TokenMerge.
func (d *Dealer) Weights(tks []string, preprocess bool) []types.WeightedTerm {
	var terms []string
	if preprocess {
		for _, tk := range tks {
			terms = append(terms, d.TokenMerge(d.Pretoken(tk, true, true))...)
		}
	} else {
		terms = tks
	}

	tw := make([]types.WeightedTerm, 0, len(terms))
	var total float64
	for _, t := range terms {
		idf1 := idf(d.freq(t), freqCorpusSize)
		idf2 := idf(d.docFreq(t), docCorpusSize)
		w := (0.3*idf1 + 0.7*idf2) * d.nerWeight(t) * d.posWeight(t)
		tw = append(tw, types.WeightedTerm{Term: t, Weight: w})
		total += w
	}

	if total > 0 {
		for i := range tw {
			tw[i].Weight /= total
		}
	}
	return tw
}

func idf(s, n float64) float64 {
	return math.Log10(10 + (n-s+0.5)/(s+0.5))
}

func (d *Dealer) nerWeight(t string) float64 {
	if nerNumericRe.MatchString(t) {
		return 2
	}
	if nerShortRe.MatchString(t) {
		return 0.01
	}
	if m, ok := nerMultipliers[d.ne[t]]; ok {
		return m
	}
	return 1
}

func (d *Dealer) posWeight(t string) float64 {
	switch d.tok.Tag(t) {
	case "r", "c", "d":
		return 0.3
	case "ns", "nt":
		return 3
	case "n":
		return 2
	}
	if numericRe.MatchString(t) {
		return 2
	}
	return 1
}

// subTerms returns the multi-character fine-grained parts of t
func (d *Dealer) subTerms(t string) []string {
	var parts []string
	for _, p := range d.tok.FineGrained(strings.Fields(t)) {
		if p != t && utf8.RuneCountInString(p) > 1 {
			parts = append(parts, p)
		}
	}
	return parts
}

func (d *Dealer) freq(t string) float64 {
	if numSpaceRe.MatchString(t) {
		return 3
	}
	s := float64(d.tok.Freq(t))
	if s == 0 && latinRe.MatchString(t) {
		return 300
	}
	if s == 0 && utf8.RuneCountInString(t) >= 4 {
		if parts := d.subTerms(t); len(parts) > 1 {
			m := math.Inf(1)
			for _, p := range parts {
				m = math.Min(m, d.freq(p))
			}
			s = m / 6
		}
	}
	return math.Max(s, 10)
}

func (d *Dealer) docFreq(t string) float64 {
	if numSpaceRe.MatchString(t) {
		return 5
	}
	if v, ok := d.df[t]; ok {
		return float64(v) + 3
	}
	if latinRe.MatchString(t) {
		return 300
	}
	if utf8.RuneCountInString(t) >= 4 {
		if parts := d.subTerms(t); len(parts) > 1 {
			m := math.Inf(1)
			for _, p := range parts {
				m = math.Min(m, d.docFreq(p))
			}
			return math.Max(3, m/6)
		}
	}
	return 3
}
