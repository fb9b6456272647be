package query

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/pkg/types"
)

// ErrEmptyQuestion is returned for blank question text
var ErrEmptyQuestion = errors.New("question text is empty")

const (
	// DefaultMinShouldMatch is used when the caller passes a fraction outside (0, 1]
	DefaultMinShouldMatch = 0.6
	// DefaultTopN is the number of hits requested from the engine
	DefaultTopN = 100

	defaultCacheSize = 1000
	maxTerms         = 256
	maxKeywords      = 32
	synonymTopN      = 8
)

// DefaultFields are the searchable chunk fields and their boosts
var DefaultFields = []string{
	"title_tks^10",
	"title_sm_tks^5",
	"important_kwd^30",
	"important_tks^20",
	"question_tks^20",
	"content_ltks^2",
	"content_sm_ltks",
}

var (
	tokenCleanRe    = regexp.MustCompile(`[ "'^]+`)
	singleAlnumRe   = regexp.MustCompile(`^[a-z0-9]$`)
	leadingSignRe   = regexp.MustCompile(`^[+-]+`)
	queryUnsafeRe   = regexp.MustCompile(`[.^+()-]`)
	quoteRe         = regexp.MustCompile(`["']+`)
	alnumQuestionRe = regexp.MustCompile(`^[a-z0-9 ]+$`)
)

// Synonyms is the synonym lookup consulted during expansion
type Synonyms interface {
	Lookup(term string, topN int) []string
	Version() uint64
}

type cachedQuestion struct {
	expr     MatchTextExpr
	keywords []string
}

// Builder turns questions into weighted full-text query expressions
type Builder struct {
	dealer    *termweight.Dealer
	syns      Synonyms
	fields    []string
	topN      int
	cacheSize int
	cache     *lru.Cache[[32]byte, cachedQuestion]
	logger    *zap.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l).Named("query") }
}

// WithFields overrides DefaultFields
func WithFields(fields []string) Option {
	return func(b *Builder) { b.fields = slices.Clone(fields) }
}

// WithCacheSize sets the number of built questions kept in the LRU cache
func WithCacheSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.cacheSize = n
		}
	}
}

// WithTopN sets the number of hits requested from the engine
func WithTopN(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.topN = n
		}
	}
}

// NewBuilder creates a query builder. syns may be nil to disable expansion.
func NewBuilder(dealer *termweight.Dealer, syns Synonyms, opts ...Option) *Builder {
	b := &Builder{
		dealer:    dealer,
		syns:      syns,
		fields:    DefaultFields,
		topN:      DefaultTopN,
		cacheSize: defaultCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	cache, err := lru.New[[32]byte, cachedQuestion](b.cacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	b.cache = cache
	return b
}

// Question builds the query expression and highlight keywords for a
// natural-language question. Results are deterministic for a fixed synonym
// snapshot and are cached per (snapshot version, minMatch, text).
func (b *Builder) Question(text string, minMatch float64) (*MatchTextExpr, []string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, ErrEmptyQuestion
	}
	if minMatch <= 0 || minMatch > 1 {
		minMatch = DefaultMinShouldMatch
	}

	key := b.cacheKey(text, minMatch)
	if hit, ok := b.cache.Get(key); ok {
		expr := hit.expr
		return &expr, slices.Clone(hit.keywords), nil
	}

	normalized := strings.TrimSpace(RmWWW(NormalizeQuestion(text)))
	if normalized == "" {
		normalized = strings.TrimSpace(text)
	}

	var (
		expr     *MatchTextExpr
		keywords []string
	)
	cjk := IsChinese(normalized)
	if cjk {
		expr, keywords = b.chinese(normalized, minMatch)
	} else {
		expr, keywords = b.latin(normalized)
	}
	expr.OriginalQuery = text

	b.logger.Debug("built question",
		zap.Bool("cjk", cjk),
		zap.Int("keywords", len(keywords)),
		zap.String("query", expr.MatchingText()))

	b.cache.Add(key, cachedQuestion{expr: *expr, keywords: slices.Clone(keywords)})
	return expr, keywords, nil
}

func (b *Builder) cacheKey(text string, minMatch float64) [32]byte {
	var version uint64
	if b.syns != nil {
		version = b.syns.Version()
	}
	return sha256.Sum256([]byte(fmt.Sprintf("%d\x00%g\x00%s", version, minMatch, text)))
}

func (b *Builder) lookup(term string) []string {
	if b.syns == nil {
		return nil
	}
	return b.syns.Lookup(term, synonymTopN)
}

func (b *Builder) newExpr(root Expr) *MatchTextExpr {
	return &MatchTextExpr{Fields: b.fields, Root: root, TopN: b.topN}
}

// fallback is the single-clause expression used when no term survives
func (b *Builder) fallback(text string) Expr {
	return Group{Op: OpShould, Clauses: []Expr{Term{Text: SubSpecialChar(text)}}}
}

// latin builds one boosted clause per weighted token plus adjacent-pair phrases
func (b *Builder) latin(text string) (*MatchTextExpr, []string) {
	text = RmWWW(text)
	tok := b.dealer.Tokenizer()
	tokens := tok.Tokenize(text)

	kw := newKeywordList(0)
	kw.add(tokens...)

	var tws []types.WeightedTerm
	for _, tw := range b.dealer.Weights(tokens, false) {
		tk := tokenCleanRe.ReplaceAllString(tw.Term, "")
		tk = singleAlnumRe.ReplaceAllString(tk, "")
		tk = strings.TrimSpace(leadingSignRe.ReplaceAllString(tk, ""))
		if tk == "" {
			continue
		}
		tws = append(tws, types.WeightedTerm{Term: tk, Weight: tw.Weight})
	}
	if len(tws) > maxTerms {
		tws = tws[:maxTerms]
	}

	var clauses []Expr
	for _, tw := range tws {
		syns := tok.Tokenize(strings.Join(b.lookup(tw.Term), " "))
		kw.add(syns...)
		if queryUnsafeRe.MatchString(tw.Term) {
			continue
		}
		parts := []Expr{Term{Text: tw.Term, Boost: tw.Weight}}
		for _, s := range syns {
			parts = append(parts, Phrase{Words: []string{SubSpecialChar(s)}, Boost: tw.Weight / 4})
		}
		clauses = append(clauses, Group{Op: OpShould, Clauses: parts})
	}
	for i := 1; i < len(tws); i++ {
		left, right := tws[i-1], tws[i]
		clauses = append(clauses, Phrase{
			Words: []string{SubSpecialChar(left.Term), SubSpecialChar(right.Term)},
			Boost: 2 * max(left.Weight, right.Weight),
		})
	}

	if len(clauses) == 0 {
		return b.newExpr(b.fallback(text)), kw.list()
	}
	return b.newExpr(Group{Op: OpShould, Clauses: clauses}), kw.list()
}

// chinese expands each weighted term with synonyms and sub-terms and joins
// the term clauses under minimum-should-match
func (b *Builder) chinese(text string, minMatch float64) (*MatchTextExpr, []string) {
	text = RmWWW(text)
	tok := b.dealer.Tokenizer()

	segments := b.dealer.Split(text)
	if len(segments) > maxTerms {
		segments = segments[:maxTerms]
	}

	kw := newKeywordList(maxKeywords)
	var (
		clauses []Expr
		surface []string
		nTerms  int
	)
	for _, seg := range segments {
		kw.add(seg)
		kw.add(b.lookup(seg)...)

		for _, tw := range b.dealer.Weights([]string{seg}, true) {
			tk := tw.Term
			sm := b.subTerms(tk)

			kw.add(strings.TrimSpace(quoteRe.ReplaceAllString(tk, "")))
			kw.add(sm...)

			syns := slices.Clone(b.lookup(tk))
			for i, s := range syns {
				syns[i] = SubSpecialChar(s)
			}
			kw.add(syns...)

			escaped := SubSpecialChar(tk)
			if escaped == "" {
				continue
			}
			parts := []Expr{wordsExpr(strings.Fields(escaped), 0)}
			if len(syns) > 0 {
				var alts []Expr
				for _, s := range syns {
					if s == "" {
						continue
					}
					alts = append(alts, wordsExpr(tok.FineGrained(strings.Fields(s)), 0))
				}
				if len(alts) > 0 {
					parts = append(parts, Group{Op: OpShould, Clauses: alts, Boost: 0.7})
				}
			}
			if len(sm) > 0 {
				parts = append(parts, Phrase{Words: sm, Slop: 2, Boost: 0.5})
			}

			clauses = append(clauses, Group{Op: OpOr, Clauses: parts, Boost: tw.Weight})
			surface = append(surface, strings.Fields(escaped)...)
			nTerms++
		}
	}

	if nTerms > 1 {
		clauses = append(clauses, Phrase{Words: surface, Slop: 4, Boost: 1.5})
	}
	if words := strings.Fields(text); len(words) > 1 && alnumQuestionRe.MatchString(text) {
		terms := make([]Expr, 0, len(words))
		for _, w := range words {
			terms = append(terms, Term{Text: SubSpecialChar(w)})
		}
		clauses = append(clauses, Group{Op: OpOr, Clauses: []Expr{
			Phrase{Words: words},
			Group{Op: OpAnd, Clauses: terms},
		}})
	}

	if len(clauses) == 0 {
		return b.newExpr(b.fallback(text)), kw.list()
	}
	expr := b.newExpr(Group{Op: OpShould, Clauses: clauses})
	expr.MinimumShouldMatch = percent(minMatch)
	return expr, kw.list()
}

// subTerms sub-segments a long non-code term. Fewer than two surviving
// parts discards the sub-segmentation.
func (b *Builder) subTerms(tk string) []string {
	if !needFineGrained(tk) {
		return nil
	}
	var sm []string
	for _, p := range b.dealer.Tokenizer().FineGrained(strings.Fields(tk)) {
		p = subTermPunct.ReplaceAllString(p, "")
		if p == tk || utf8.RuneCountInString(p) <= 1 {
			continue
		}
		sm = append(sm, SubSpecialChar(p))
	}
	if len(sm) < 2 {
		return nil
	}
	return sm
}

// Paragraph builds a keyword query from a chunk's content tokens, e.g. to
// find passages related to an existing one. The topN heaviest tokens are
// expanded with synonyms; keywords are matched as exact phrases.
func (b *Builder) Paragraph(contentTokens, keywords []string, topN int) *MatchTextExpr {
	var clauses []Expr
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			clauses = append(clauses, Phrase{Words: []string{SubSpecialChar(k)}})
		}
	}

	tok := b.dealer.Tokenizer()
	tws := b.dealer.Weights(contentTokens, false)
	sort.SliceStable(tws, func(i, j int) bool { return tws[i].Weight > tws[j].Weight })
	if topN > 0 && len(tws) > topN {
		tws = tws[:topN]
	}

	for _, tw := range tws {
		escaped := SubSpecialChar(tw.Term)
		if escaped == "" {
			continue
		}
		var alts []Expr
		for _, s := range b.lookup(tw.Term) {
			if s = SubSpecialChar(s); s != "" {
				alts = append(alts, wordsExpr(tok.FineGrained(strings.Fields(s)), 0))
			}
		}
		if len(alts) == 0 {
			clauses = append(clauses, wordsExpr(strings.Fields(escaped), tw.Weight))
			continue
		}
		clauses = append(clauses, Group{Op: OpOr, Boost: tw.Weight, Clauses: []Expr{
			wordsExpr(strings.Fields(escaped), 0),
			Group{Op: OpShould, Clauses: alts, Boost: 0.2},
		}})
	}

	if len(clauses) == 0 {
		return nil
	}
	expr := b.newExpr(Group{Op: OpShould, Clauses: clauses})
	if msm := min(3, len(clauses)/10); msm > 0 {
		expr.MinimumShouldMatch = strconv.Itoa(msm)
	}
	return expr
}

// wordsExpr renders one word as a Term and several as a Phrase
func wordsExpr(words []string, boost float64) Expr {
	if len(words) == 1 {
		return Term{Text: words[0], Boost: boost}
	}
	return Phrase{Words: words, Boost: boost}
}

// keywordList keeps first-seen order, drops duplicates and stops
// accepting once limit is reached (limit 0 means unbounded)
type keywordList struct {
	limit int
	seen  map[string]struct{}
	items []string
}

func newKeywordList(limit int) *keywordList {
	return &keywordList{limit: limit, seen: make(map[string]struct{})}
}

func (k *keywordList) add(words ...string) {
	for _, w := range words {
		if k.limit > 0 && len(k.items) >= k.limit {
			return
		}
		if w == "" {
			continue
		}
		if _, ok := k.seen[w]; ok {
			continue
		}
		k.seen[w] = struct{}{}
		k.items = append(k.items, w)
	}
}

func (k *keywordList) list() []string {
	return k.items
}
