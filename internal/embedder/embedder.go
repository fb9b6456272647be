package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
)

// Common errors
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrProviderFailed = errors.New("embedding provider failed")
)

// Embedder turns texts into vectors of a fixed dimension
type Embedder interface {
	// Embed returns one vector per text, in order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Model returns the model name
	Model() string
}

// Cache provides in-memory LRU caching of vectors by content hash
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000 // Default: cache 10k embeddings
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding cache: %v", err))
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a copy of vector under hash
func (c *Cache) Set(hash string, vector []float32) {
	v := make([]float32, len(vector))
	copy(v, vector)
	c.cache.Add(hash, v)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateBatch rejects empty batches and empty texts
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// Cached wraps an Embedder and only forwards texts it has not seen
type Cached struct {
	inner  Embedder
	cache  *Cache
	logger *zap.Logger
}

// CachedOption configures a Cached embedder
type CachedOption func(*Cached)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) CachedOption {
	return func(c *Cached) { c.logger = logging.OrNop(l).Named("embedder") }
}

// NewCached wraps inner. A nil cache gets a default-sized one.
func NewCached(inner Embedder, cache *Cache, opts ...CachedOption) *Cached {
	if cache == nil {
		cache = NewCache(0)
	}
	c := &Cached{inner: inner, cache: cache, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed implements Embedder
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = c.inner.Model() + ":" + ComputeHash(text)
		if v, ok := c.cache.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := c.inner.Embed(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vectors), len(missing))
		}
		for j, i := range missingIdx {
			out[i] = vectors[j]
			c.cache.Set(keys[i], vectors[j])
		}
	}

	c.logger.Debug("embedded batch",
		zap.Int("texts", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missing)))
	return out, nil
}

// Dimension implements Embedder
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Model implements Embedder
func (c *Cached) Model() string { return c.inner.Model() }

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
