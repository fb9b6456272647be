// Package retriever answers questions against the chunk store: it builds
// the full-text query, gathers keyword and vector candidates and reranks
// them with the hybrid scorer.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/query"
	"github.com/dshills/ragcore/internal/searcher"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/pkg/types"
)

// Mode selects which candidate sources and score components are used
type Mode string

const (
	ModeHybrid  Mode = "hybrid"
	ModeKeyword Mode = "keyword"
	ModeVector  Mode = "vector"

	// DefaultLimit is the number of results returned when none is requested
	DefaultLimit = 10

	// candidateFactor widens each source before reranking
	candidateFactor = 3
)

var (
	// ErrNoEmbedder is returned for vector searches without an embedder
	ErrNoEmbedder = errors.New("vector search requires an embedder")
	// ErrInvalidMode is returned for unknown search modes
	ErrInvalidMode = errors.New("invalid search mode")
)

// Request describes one search
type Request struct {
	Question       string
	Limit          int
	Mode           Mode
	MinShouldMatch float64
}

// Result is one ranked chunk
type Result struct {
	ChunkID     string
	DocID       string
	Text        string
	ImageRef    string
	Positions   []types.Position
	Score       float64
	TokenScore  float64
	VectorScore float64
}

// Response carries the ranked chunks and the query they were found with
type Response struct {
	Results  []Result
	Keywords []string
	Query    *query.MatchTextExpr
	Duration time.Duration
}

// Retriever runs searches over a Storage
type Retriever struct {
	store    storage.Storage
	builder  *query.Builder
	scorer   *searcher.Scorer
	embedder embedder.Embedder
	vtWeight float64
	tkWeight float64
	logger   *zap.Logger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithEmbedder enables vector candidates and vector scoring
func WithEmbedder(e embedder.Embedder) Option {
	return func(r *Retriever) { r.embedder = e }
}

// WithWeights sets the hybrid blend of vector and token similarity
func WithWeights(vector, token float64) Option {
	return func(r *Retriever) {
		r.vtWeight = vector
		r.tkWeight = token
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = logging.OrNop(l).Named("retriever") }
}

// New creates a Retriever
func New(store storage.Storage, builder *query.Builder, scorer *searcher.Scorer, opts ...Option) *Retriever {
	r := &Retriever{
		store:    store,
		builder:  builder,
		scorer:   scorer,
		vtWeight: searcher.DefaultVectorWeight,
		tkWeight: searcher.DefaultTokenWeight,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search returns the chunks best matching req.Question
func (r *Retriever) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeHybrid, ModeKeyword:
	case ModeVector:
		if r.embedder == nil {
			return nil, ErrNoEmbedder
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	expr, keywords, err := r.builder.Question(req.Question, req.MinShouldMatch)
	if err != nil {
		return nil, err
	}

	var qVec []float32
	if mode != ModeKeyword && r.embedder != nil {
		vectors, err := r.embedder.Embed(ctx, []string{req.Question})
		if err != nil {
			return nil, fmt.Errorf("failed to embed question: %w", err)
		}
		qVec = vectors[0]
	}

	ids, err := r.candidateIDs(ctx, mode, keywords, qVec, limit*candidateFactor)
	if err != nil {
		return nil, err
	}

	cands, err := r.store.Candidates(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range cands {
		if len(cands[i].Vector) != len(qVec) {
			// Unembedded or foreign-model chunks score 0 on the vector side
			cands[i].Vector = make([]float32, len(qVec))
		}
	}

	vt, tk := r.weights(mode, qVec)
	ranked, err := r.scorer.Rerank(qVec, keywords, cands, vt, tk)
	if err != nil {
		return nil, err
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]Result, 0, len(ranked))
	for _, rk := range ranked {
		c, err := r.store.GetChunk(ctx, rk.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue // replaced since candidate loading
		}
		if err != nil {
			return nil, err
		}
		results = append(results, Result{
			ChunkID:     c.ID,
			DocID:       c.DocID,
			Text:        c.Text,
			ImageRef:    c.ImageRef,
			Positions:   c.Positions,
			Score:       rk.Score,
			TokenScore:  rk.TokenScore,
			VectorScore: rk.VectorScore,
		})
	}

	resp := &Response{
		Results:  results,
		Keywords: keywords,
		Query:    expr,
		Duration: time.Since(start),
	}
	r.logger.Debug("search complete",
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(results)),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

// candidateIDs unions keyword and vector hits, keyword hits first
func (r *Retriever) candidateIDs(ctx context.Context, mode Mode, keywords []string, qVec []float32, n int) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if mode != ModeVector && len(keywords) > 0 {
		hits, err := r.store.SearchText(ctx, strings.Join(keywords, " "), n)
		if err != nil && !errors.Is(err, storage.ErrEmptyQuery) {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		for _, h := range hits {
			add(h.ChunkID)
		}
	}

	if mode != ModeKeyword && len(qVec) > 0 {
		hits, err := r.store.SearchVector(ctx, qVec, n)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		for _, h := range hits {
			add(h.ChunkID)
		}
	}
	return ids, nil
}

func (r *Retriever) weights(mode Mode, qVec []float32) (vt, tk float64) {
	switch {
	case mode == ModeKeyword || len(qVec) == 0:
		return 0, 1
	case mode == ModeVector:
		return 1, 0
	default:
		return r.vtWeight, r.tkWeight
	}
}
