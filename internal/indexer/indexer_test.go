package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/internal/component"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/pkg/types"
)

// sectionStage emits one chunk per section and fails on a section
// reading "fail"
type sectionStage struct {
	calls atomic.Int32
}

func (s *sectionStage) Name() string { return "sections" }

func (s *sectionStage) Invoke(ctx context.Context, inv *component.Invocation) error {
	s.calls.Add(1)
	raw, _ := inv.Input(component.InputSections)
	sections, _ := raw.([]types.Section)
	chunks := make([]types.Chunk, 0, len(sections))
	for _, sec := range sections {
		if sec.Text == "fail" {
			return errors.New("cannot chunk")
		}
		chunks = append(chunks, types.Chunk{Text: sec.Text})
	}
	inv.SetOutput(component.OutputChunks, chunks)
	return nil
}

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.texts = append(m.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int { return 2 }
func (m *mockEmbedder) Model() string  { return "mock" }

func setupStorage(t *testing.T) *storage.SQLiteStorage {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func doc(id string, texts ...string) Document {
	sections := make([]types.Section, len(texts))
	for i, t := range texts {
		sections[i] = types.Section{Text: t}
	}
	return Document{ID: id, Sections: sections}
}

func TestIndexDocuments(t *testing.T) {
	store := setupStorage(t)
	emb := &mockEmbedder{}
	idx := New(store, &sectionStage{}, WithEmbedder(emb))
	ctx := context.Background()

	stats, err := idx.IndexDocuments(ctx, []Document{
		doc("a", "alpha one", "alpha two"),
		doc("b", "beta"),
	}, &Config{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsSkipped)
	assert.Equal(t, 0, stats.DocumentsFailed)
	assert.Equal(t, 3, stats.ChunksCreated)
	assert.Equal(t, 3, stats.EmbeddingsStored)
	assert.Empty(t, stats.ErrorMessages)
	assert.ElementsMatch(t, []string{"alpha one", "alpha two", "beta"}, emb.texts)

	chunks, err := store.ListChunks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha two", chunks[1].Text)

	cands, err := store.Candidates(ctx, []string{chunks[0].ID})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.NotNil(t, cands[0].Vector)
}

func TestIndexDocuments_SkipsUnchanged(t *testing.T) {
	store := setupStorage(t)
	stage := &sectionStage{}
	idx := New(store, stage)
	ctx := context.Background()

	docs := []Document{doc("a", "one", "two")}
	_, err := idx.IndexDocuments(ctx, docs, nil)
	require.NoError(t, err)
	before, err := store.ListChunks(ctx, "a")
	require.NoError(t, err)

	stats, err := idx.IndexDocuments(ctx, docs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsSkipped)
	assert.Equal(t, 0, stats.DocumentsIndexed)

	after, err := store.ListChunks(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, before[0].ID, after[0].ID, "skipped document keeps its chunks")

	// A changed document is re-stored
	stats, err = idx.IndexDocuments(ctx, []Document{doc("a", "one", "three")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)

	// ForceReindex ignores hashes
	stats, err = idx.IndexDocuments(ctx, []Document{doc("a", "one", "three")}, &Config{ForceReindex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 0, stats.DocumentsSkipped)
}

func TestIndexDocuments_FailuresAreIsolated(t *testing.T) {
	store := setupStorage(t)
	idx := New(store, &sectionStage{})
	ctx := context.Background()

	stats, err := idx.IndexDocuments(ctx, []Document{
		doc("good", "fine"),
		doc("bad", "fail"),
		{ID: "", Sections: []types.Section{{Text: "x"}}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsIndexed)
	assert.Equal(t, 2, stats.DocumentsFailed)
	require.Len(t, stats.ErrorMessages, 2)
	joined := strings.Join(stats.ErrorMessages, "\n")
	assert.Contains(t, joined, "bad: sections stage failed: cannot chunk")
	assert.Contains(t, joined, "document id cannot be empty")

	chunks, err := store.ListChunks(ctx, "bad")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestIndexDocuments_EmbedderFailure(t *testing.T) {
	store := setupStorage(t)
	idx := New(store, &sectionStage{}, WithEmbedder(&mockEmbedder{err: errors.New("offline")}))

	stats, err := idx.IndexDocuments(context.Background(), []Document{doc("a", "text")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsFailed)
	assert.Contains(t, stats.ErrorMessages[0], "failed to embed chunks")
}

func TestIndexDocuments_Duplicates(t *testing.T) {
	idx := New(setupStorage(t), &sectionStage{})

	_, err := idx.IndexDocuments(context.Background(), []Document{doc("a", "x"), doc("a", "y")}, nil)
	assert.ErrorIs(t, err, ErrDuplicateDocument)
}

func TestIndexDocuments_Cancelled(t *testing.T) {
	stage := &sectionStage{}
	idx := New(setupStorage(t), stage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs := make([]Document, 20)
	for i := range docs {
		docs[i] = doc(fmt.Sprintf("d%d", i), "text")
	}
	_, err := idx.IndexDocuments(ctx, docs, &Config{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexDocuments_DocumentBusy(t *testing.T) {
	idx := New(setupStorage(t), &sectionStage{})
	require.True(t, idx.locks.TryAcquire("a"))

	stats, err := idx.IndexDocuments(context.Background(), []Document{doc("a", "x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsFailed)
	assert.Contains(t, stats.ErrorMessages[0], ErrIndexingInProgress.Error())

	idx.locks.Release("a")
	stats, err = idx.IndexDocuments(context.Background(), []Document{doc("a", "x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentsIndexed)
}

func TestIndexDocuments_SplitterStage(t *testing.T) {
	store := setupStorage(t)
	stage := component.NewSplitterStage(component.SplitterParams{
		ChunkTokenSize: 4,
		Delimiters:     []string{"\n"},
	}, wordCounter{})
	idx := New(store, stage, WithEmbedder(embedder.NewLocalProvider(32, nil)))
	ctx := context.Background()

	stats, err := idx.IndexDocuments(ctx, []Document{
		doc("notes", "one two three\nfour five six\nseven"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, stats.DocumentsIndexed, stats.ErrorMessages)
	assert.Equal(t, 2, stats.ChunksCreated)

	results, err := store.SearchText(ctx, "five", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDocLocks(t *testing.T) {
	var l docLocks
	assert.True(t, l.TryAcquire("a"))
	assert.False(t, l.TryAcquire("a"))
	assert.True(t, l.TryAcquire("b"))
	l.Release("a")
	assert.True(t, l.TryAcquire("a"))
}

type wordCounter struct{}

func (wordCounter) NumTokens(text string) int { return len(strings.Fields(text)) }
