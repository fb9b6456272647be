package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/query"
	"github.com/dshills/ragcore/internal/searcher"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/internal/tokenizer"
	"github.com/dshills/ragcore/pkg/types"
)

type fixture struct {
	store  *storage.SQLiteStorage
	ids    []string
	dealer *termweight.Dealer
}

func setup(t *testing.T, embed embedder.Embedder) fixture {
	t.Helper()
	tok := tokenizer.New(tokenizer.EmptyDictionary())
	store, err := storage.NewSQLiteStorage(":memory:", storage.WithTokenizer(tok))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	texts := []string{
		"sqlite storage engines compared",
		"bread baking recipes",
		"storage of grain in silos",
	}
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = types.Chunk{Text: text, Positions: []types.Position{{Pages: []int{i}}}}
	}
	ids, err := store.SaveChunks(ctx, "doc", chunks)
	require.NoError(t, err)

	if embed != nil {
		vectors, err := embed.Embed(ctx, texts)
		require.NoError(t, err)
		for i, id := range ids {
			require.NoError(t, store.UpsertEmbedding(ctx, id, vectors[i], embed.Model()))
		}
	}
	return fixture{store: store, ids: ids, dealer: termweight.NewDealer(tok, nil, nil)}
}

func (f fixture) retriever(opts ...Option) *Retriever {
	return New(f.store, query.NewBuilder(f.dealer, nil), searcher.NewScorer(f.dealer), opts...)
}

func TestSearch_Keyword(t *testing.T) {
	f := setup(t, nil)

	resp, err := f.retriever().Search(context.Background(), Request{
		Question: "storage engines",
		Mode:     ModeKeyword,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, f.ids[0], resp.Results[0].ChunkID)
	assert.Equal(t, f.ids[2], resp.Results[1].ChunkID)
	assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
	assert.Equal(t, "doc", resp.Results[0].DocID)
	assert.Equal(t, "sqlite storage engines compared", resp.Results[0].Text)
	assert.Equal(t, []int{0}, resp.Results[0].Positions[0].Pages)
	assert.Contains(t, resp.Keywords, "storage")
	assert.NotNil(t, resp.Query)
	assert.Equal(t, "storage engines", resp.Query.OriginalQuery)
}

func TestSearch_HybridWithoutEmbedderFallsBackToTokens(t *testing.T) {
	f := setup(t, nil)

	resp, err := f.retriever().Search(context.Background(), Request{Question: "grain"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, f.ids[2], resp.Results[0].ChunkID)
	assert.Equal(t, 0.0, resp.Results[0].VectorScore)
}

func TestSearch_Hybrid(t *testing.T) {
	emb := embedder.NewLocalProvider(128, nil)
	f := setup(t, emb)

	resp, err := f.retriever(WithEmbedder(emb)).Search(context.Background(), Request{
		Question: "storage engines",
		Limit:    2,
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	top := resp.Results[0]
	assert.Equal(t, f.ids[0], top.ChunkID)
	assert.Greater(t, top.VectorScore, 0.0)
	assert.Greater(t, top.TokenScore, 0.0)
	assert.InDelta(t, searcher.DefaultVectorWeight*top.VectorScore+searcher.DefaultTokenWeight*top.TokenScore, top.Score, 1e-9)
}

func TestSearch_Vector(t *testing.T) {
	emb := embedder.NewLocalProvider(128, nil)
	f := setup(t, emb)

	resp, err := f.retriever(WithEmbedder(emb)).Search(context.Background(), Request{
		Question: "bread baking recipes",
		Mode:     ModeVector,
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, f.ids[1], resp.Results[0].ChunkID)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
}

func TestSearch_UnembeddedCandidates(t *testing.T) {
	emb := embedder.NewLocalProvider(128, nil)
	f := setup(t, nil)
	ctx := context.Background()

	vectors, err := emb.Embed(ctx, []string{"sqlite storage engines compared"})
	require.NoError(t, err)
	require.NoError(t, f.store.UpsertEmbedding(ctx, f.ids[0], vectors[0], emb.Model()))

	resp, err := f.retriever(WithEmbedder(emb)).Search(ctx, Request{Question: "storage"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		if r.ChunkID == f.ids[2] {
			assert.Equal(t, 0.0, r.VectorScore)
		}
	}
}

func TestSearch_Errors(t *testing.T) {
	f := setup(t, nil)
	r := f.retriever()
	ctx := context.Background()

	_, err := r.Search(ctx, Request{Question: "  "})
	assert.ErrorIs(t, err, query.ErrEmptyQuestion)

	_, err = r.Search(ctx, Request{Question: "storage", Mode: ModeVector})
	assert.ErrorIs(t, err, ErrNoEmbedder)

	_, err = r.Search(ctx, Request{Question: "storage", Mode: "fuzzy"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestSearch_NoMatches(t *testing.T) {
	f := setup(t, nil)

	resp, err := f.retriever().Search(context.Background(), Request{Question: "volcano"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestWithWeights(t *testing.T) {
	r := New(nil, nil, nil, WithWeights(0.2, 0.8))
	assert.Equal(t, 0.2, r.vtWeight)
	assert.Equal(t, 0.8, r.tkWeight)

	vt, tk := r.weights(ModeHybrid, []float32{1})
	assert.Equal(t, 0.2, vt)
	assert.Equal(t, 0.8, tk)

	vt, tk = r.weights(ModeHybrid, nil)
	assert.Equal(t, 0.0, vt)
	assert.Equal(t, 1.0, tk)

	vt, tk = r.weights(ModeVector, []float32{1})
	assert.Equal(t, 1.0, vt)
	assert.Equal(t, 0.0, tk)
}
