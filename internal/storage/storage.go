package storage

import (
	"context"
	"image"
	"time"

	"github.com/dshills/ragcore/internal/searcher"
	"github.com/dshills/ragcore/pkg/types"
)

// Storage persists assembled chunks, their embeddings and images, and the
// shared synonym dictionary
type Storage interface {
	// Chunk operations
	SaveChunks(ctx context.Context, docID string, chunks []types.Chunk) ([]string, error)
	GetChunk(ctx context.Context, chunkID string) (*StoredChunk, error)
	ListChunks(ctx context.Context, docID string) ([]*StoredChunk, error)
	DeleteChunks(ctx context.Context, docID string) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, chunkID string, vector []float32, model string) error

	// Search operations
	SearchVector(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)
	Candidates(ctx context.Context, chunkIDs []string) ([]searcher.Candidate, error)

	// Image operations
	Put(ctx context.Context, key string, img image.Image) (string, error)
	GetImage(ctx context.Context, ref string) (image.Image, error)

	// Synonym operations
	UpsertSynonyms(ctx context.Context, entries map[string][]string) error
	LoadSynonyms(ctx context.Context) (map[string]any, error)

	// Database operations
	Status(ctx context.Context) (*Status, error)
	Close() error
}

// Tokenizer splits chunk text into index terms
type Tokenizer interface {
	Tokenize(text string) []string
}

// StoredChunk is a persisted chunk of a document
type StoredChunk struct {
	ID          string
	DocID       string
	Seq         int
	Text        string
	Tokens      []string
	ContentHash [32]byte
	ImageRef    string
	Positions   []types.Position
	CreatedAt   time.Time
}

// VectorResult represents a vector search result
type VectorResult struct {
	ChunkID         string
	SimilarityScore float64
}

// TextResult represents a full-text search result
type TextResult struct {
	ChunkID   string
	BM25Score float64
}

// Status summarizes the contents and health of the store
type Status struct {
	DocumentsCount  int
	ChunksCount     int
	EmbeddingsCount int
	ImagesCount     int
	SynonymsCount   int
	SchemaVersion   string
	SizeBytes       int64
	Health          HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	VectorExtension     bool
}
