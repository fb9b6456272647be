package searcher

import (
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/pkg/types"
)

const (
	// DefaultVectorWeight is the share of the blended score taken by cosine similarity
	DefaultVectorWeight = 0.7
	// DefaultTokenWeight is the share taken by lexical overlap
	DefaultTokenWeight = 0.3

	defaultCacheSize = 4096
	epsilon          = 1e-9
)

// Candidate is a retrieved chunk to be re-scored
type Candidate struct {
	ID     string
	Vector []float32
	// Tokens are the chunk's content, title and keyword tokens
	Tokens []string
}

// Ranked is a candidate with its blended score and both components
type Ranked struct {
	ID          string
	Score       float64
	TokenScore  float64
	VectorScore float64
}

// Scorer blends vector cosine similarity with weighted lexical overlap
type Scorer struct {
	dealer *termweight.Dealer
	cache  *lru.Cache[[32]byte, map[string]float64]
	logger *zap.Logger
}

// Option configures a Scorer
type Option func(*Scorer)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scorer) { s.logger = logging.OrNop(l).Named("searcher") }
}

// NewScorer creates a scorer using dealer to weight tokens
func NewScorer(dealer *termweight.Dealer, opts ...Option) *Scorer {
	// Weight maps of candidate token lists are reused across reranks
	cache, err := lru.New[[32]byte, map[string]float64](defaultCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Scorer{
		dealer: dealer,
		cache:  cache,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Similarity is the asymmetric lexical overlap of d with respect to q: the
// share of q's weight whose terms occur in d, damped for long term lists.
// Only the presence of q's terms in d counts.
func Similarity(q, d map[string]float64) float64 {
	s, total := epsilon, epsilon
	for t, w := range q {
		if _, ok := d[t]; ok {
			s += w
		}
		total += w
	}
	n := float64(max(len(q), len(d)))
	damp := 1.0
	if n > 0 {
		damp = math.Max(1, math.Sqrt(math.Log10(n)))
	}
	return s / total / damp
}

// HybridSimilarity scores each candidate as
// vtWeight*cosine(qVec, dVec) + tkWeight*Similarity(qWeights, dWeights).
// It returns the blended scores and both components, one per candidate.
func HybridSimilarity(qVec []float32, qWeights map[string]float64, dVecs [][]float32, dWeights []map[string]float64, vtWeight, tkWeight float64) (sims, tkSims, vecSims []float64, err error) {
	if len(dVecs) != len(dWeights) {
		return nil, nil, nil, fmt.Errorf("%w: %d vectors, %d weight maps", types.ErrCandidateMismatch, len(dVecs), len(dWeights))
	}

	sims = make([]float64, len(dVecs))
	tkSims = make([]float64, len(dVecs))
	vecSims = make([]float64, len(dVecs))
	for i := range dVecs {
		if len(dVecs[i]) != len(qVec) {
			return nil, nil, nil, fmt.Errorf("%w: candidate %d has %d dimensions, query has %d",
				types.ErrDimensionMismatch, i, len(dVecs[i]), len(qVec))
		}
		vecSims[i] = cosineSimilarity(qVec, dVecs[i])
		tkSims[i] = Similarity(qWeights, dWeights[i])
		sims[i] = vtWeight*vecSims[i] + tkWeight*tkSims[i]
	}
	return sims, tkSims, vecSims, nil
}

// Weights returns the term -> weight map of a token list. Maps are cached
// and must be treated as read-only.
func (s *Scorer) Weights(tokens []string) map[string]float64 {
	key := sha256.Sum256([]byte(strings.Join(tokens, "\x00")))
	if m, ok := s.cache.Get(key); ok {
		return m
	}
	m := types.TermWeights(s.dealer.Weights(tokens, false))
	s.cache.Add(key, m)
	return m
}

// TokenSimilarity scores each document token list against the query tokens
func (s *Scorer) TokenSimilarity(qTokens []string, docs [][]string) []float64 {
	q := s.Weights(qTokens)
	out := make([]float64, len(docs))
	for i, d := range docs {
		out[i] = Similarity(q, s.Weights(d))
	}
	return out
}

// HybridSimilarity weights the query and candidate tokens and blends the
// lexical overlap with vector similarity
func (s *Scorer) HybridSimilarity(qVec []float32, qTokens []string, dVecs [][]float32, docs [][]string, vtWeight, tkWeight float64) (sims, tkSims, vecSims []float64, err error) {
	dWeights := make([]map[string]float64, len(docs))
	for i, d := range docs {
		dWeights[i] = s.Weights(d)
	}
	return HybridSimilarity(qVec, s.Weights(qTokens), dVecs, dWeights, vtWeight, tkWeight)
}

// Rerank scores candidates against the query keywords and vector and
// returns them best first. Ties keep candidate order.
func (s *Scorer) Rerank(qVec []float32, keywords []string, candidates []Candidate, vtWeight, tkWeight float64) ([]Ranked, error) {
	if len(candidates) == 0 {
		return []Ranked{}, nil
	}

	dVecs := make([][]float32, len(candidates))
	docs := make([][]string, len(candidates))
	for i, c := range candidates {
		dVecs[i] = c.Vector
		docs[i] = c.Tokens
	}

	sims, tkSims, vecSims, err := s.HybridSimilarity(qVec, keywords, dVecs, docs, vtWeight, tkWeight)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		ranked[i] = Ranked{ID: c.ID, Score: sims[i], TokenScore: tkSims[i], VectorScore: vecSims[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	s.logger.Debug("reranked candidates",
		zap.Int("count", len(ranked)),
		zap.Float64("top_score", ranked[0].Score))
	return ranked, nil
}
