package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

const (
	// ProviderLocal names the offline hashing provider
	ProviderLocal = "local"

	// LocalDimension is the default dimension of the local provider
	LocalDimension = 256
)

// Tokenizer splits text into the terms the local provider hashes
type Tokenizer interface {
	Tokenize(text string) []string
}

// LocalProvider embeds text offline by signed feature hashing of its tokens.
// Texts sharing tokens get a positive cosine similarity, which is enough
// to exercise vector search without a model.
type LocalProvider struct {
	dimension int
	tokenizer Tokenizer
}

// NewLocalProvider creates a local provider. dimension <= 0 selects
// LocalDimension; a nil tokenizer lowercases and splits on whitespace.
func NewLocalProvider(dimension int, tok Tokenizer) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension, tokenizer: tok}
}

// Embed implements Embedder
func (l *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *LocalProvider) embedOne(text string) []float32 {
	var tokens []string
	if l.tokenizer != nil {
		tokens = l.tokenizer.Tokenize(text)
	} else {
		tokens = strings.Fields(strings.ToLower(text))
	}

	vector := make([]float32, l.dimension)
	for _, tk := range tokens {
		h := sha256.Sum256([]byte(tk))
		idx := binary.LittleEndian.Uint32(h[:4]) % uint32(l.dimension)
		if h[4]&1 == 1 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}
	return NormalizeVector(vector)
}

// Dimension implements Embedder
func (l *LocalProvider) Dimension() int { return l.dimension }

// Model implements Embedder
func (l *LocalProvider) Model() string { return "local-hashing" }
