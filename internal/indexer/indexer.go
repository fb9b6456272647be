package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ragcore/internal/component"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/pkg/types"
)

var (
	// ErrIndexingInProgress is returned when a document is already being indexed
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrDuplicateDocument is returned when a batch names a document twice
	ErrDuplicateDocument = errors.New("duplicate document id")
)

// Document is one unit of ingestion: its sections are chunked together and
// replace whatever the store held for ID
type Document struct {
	ID       string
	Sections []types.Section
}

// Indexer coordinates the ingestion pipeline: chunk -> store -> embed
type Indexer struct {
	stage    component.Component
	runner   *component.Runner
	storage  storage.Storage
	embedder embedder.Embedder
	locks    docLocks
	logger   *zap.Logger
}

// Config contains configuration for one indexing run
type Config struct {
	Workers      int  // Number of concurrent workers (default: runtime.NumCPU())
	ForceReindex bool // Re-store documents whose chunks did not change
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	DocumentsIndexed int
	DocumentsSkipped int
	DocumentsFailed  int
	ChunksCreated    int
	EmbeddingsStored int
	Duration         time.Duration
	ErrorMessages    []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithEmbedder embeds every stored chunk that has text
func WithEmbedder(e embedder.Embedder) Option {
	return func(idx *Indexer) { idx.embedder = e }
}

// WithRunner sets the runner that invokes the chunking stage
func WithRunner(r *component.Runner) Option {
	return func(idx *Indexer) { idx.runner = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = logging.OrNop(l).Named("indexer") }
}

// New creates an Indexer that chunks documents with stage and saves them
// to store
func New(store storage.Storage, stage component.Component, opts ...Option) *Indexer {
	idx := &Indexer{
		stage:   stage,
		storage: store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.runner == nil {
		idx.runner = component.NewRunner(component.WithLogger(idx.logger))
	}
	return idx
}

// IndexDocuments chunks and stores docs concurrently. A failing document is
// counted and reported in the statistics without stopping the others;
// only cancellation aborts the run.
func (idx *Indexer) IndexDocuments(ctx context.Context, docs []Document, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDocument, d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	// Track progress with atomic counters
	var (
		indexed    int32
		skipped    int32
		failed     int32
		chunks     int32
		embeddings int32
		mu         sync.Mutex // Protect stats.ErrorMessages
	)

	semaphore := make(chan struct{}, workers)
	g, gctx := errgroup.WithContext(ctx)

	for _, doc := range docs {
		select {
		case <-gctx.Done():
		case semaphore <- struct{}{}:
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			res, err := idx.indexDocument(gctx, doc, config)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", doc.ID, err))
				mu.Unlock()
				idx.logger.Warn("document failed", zap.String("doc_id", doc.ID), zap.Error(err))
				return nil
			}
			if res.skipped {
				atomic.AddInt32(&skipped, 1)
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&chunks, int32(res.chunks))
			atomic.AddInt32(&embeddings, int32(res.embeddings))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats.DocumentsIndexed = int(indexed)
	stats.DocumentsSkipped = int(skipped)
	stats.DocumentsFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	stats.EmbeddingsStored = int(embeddings)
	stats.Duration = time.Since(startTime)

	idx.logger.Info("indexing complete",
		zap.Int("indexed", stats.DocumentsIndexed),
		zap.Int("skipped", stats.DocumentsSkipped),
		zap.Int("failed", stats.DocumentsFailed),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

type docResult struct {
	chunks     int
	embeddings int
	skipped    bool
}

// indexDocument indexes a single document
func (idx *Indexer) indexDocument(ctx context.Context, doc Document, config *Config) (docResult, error) {
	if doc.ID == "" {
		return docResult{}, errors.New("document id cannot be empty")
	}
	if !idx.locks.TryAcquire(doc.ID) {
		return docResult{}, ErrIndexingInProgress
	}
	defer idx.locks.Release(doc.ID)

	out := idx.runner.Invoke(ctx, idx.stage, map[string]any{
		component.InputSections: doc.Sections,
	})
	if msg, failed := out.Error(); failed {
		return docResult{}, fmt.Errorf("%s stage failed: %s", idx.stage.Name(), msg)
	}
	chunks, ok := out[component.OutputChunks].([]types.Chunk)
	if !ok {
		return docResult{}, fmt.Errorf("%s stage produced no chunks", idx.stage.Name())
	}

	// Check if document has changed and handle incremental update
	if !config.ForceReindex {
		unchanged, err := idx.unchanged(ctx, doc.ID, chunks)
		if err != nil {
			return docResult{}, err
		}
		if unchanged {
			return docResult{skipped: true}, nil
		}
	}

	ids, err := idx.storage.SaveChunks(ctx, doc.ID, chunks)
	if err != nil {
		return docResult{}, fmt.Errorf("failed to store chunks: %w", err)
	}

	embedded, err := idx.embed(ctx, ids, chunks)
	if err != nil {
		return docResult{}, err
	}
	return docResult{chunks: len(ids), embeddings: embedded}, nil
}

// unchanged reports whether the stored chunks of docID match chunks
func (idx *Indexer) unchanged(ctx context.Context, docID string, chunks []types.Chunk) (bool, error) {
	stored, err := idx.storage.ListChunks(ctx, docID)
	if err != nil {
		return false, fmt.Errorf("failed to list stored chunks: %w", err)
	}
	if len(stored) == 0 || len(stored) != len(chunks) {
		return false, nil
	}
	for i := range chunks {
		if stored[i].ContentHash != chunks[i].ContentHash() {
			return false, nil
		}
		hasImage := chunks[i].Image != nil || chunks[i].ImageRef != ""
		if hasImage != (stored[i].ImageRef != "") {
			return false, nil
		}
	}
	return true, nil
}

// embed stores vectors for the chunks that carry text
func (idx *Indexer) embed(ctx context.Context, ids []string, chunks []types.Chunk) (int, error) {
	if idx.embedder == nil {
		return 0, nil
	}

	var texts, targets []string
	for i := range chunks {
		if chunks[i].Text == "" {
			continue
		}
		texts = append(texts, chunks[i].Text)
		targets = append(targets, ids[i])
	}
	if len(texts) == 0 {
		return 0, nil
	}

	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i, id := range targets {
		if err := idx.storage.UpsertEmbedding(ctx, id, vectors[i], idx.embedder.Model()); err != nil {
			return i, fmt.Errorf("failed to store embedding: %w", err)
		}
	}
	return len(targets), nil
}
