package embedder

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeHash(tt.text); got != tt.want {
				t.Errorf("ComputeHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid batch", []string{"a", "b"}, false},
		{"empty batch", nil, true},
		{"empty text", []string{"a", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatch(tt.texts)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ValidateBatch() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(2)
	v := []float32{1, 2}
	cache.Set("a", v)
	v[0] = 99

	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got[0] != 1 {
		t.Errorf("cache kept caller slice: got %v", got)
	}
	got[1] = 42
	again, _ := cache.Get("a")
	if again[1] != 2 {
		t.Errorf("cache returned shared slice: got %v", again)
	}
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3})

	if cache.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cache.Size())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", cache.Size())
	}
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeVector() = %v, want [0.6 0.8]", got)
	}

	zero := []float32{0, 0}
	if got := NormalizeVector(zero); got[0] != 0 || got[1] != 0 {
		t.Errorf("NormalizeVector(zero) = %v", got)
	}
}

func TestLocalProvider(t *testing.T) {
	p := NewLocalProvider(64, nil)
	ctx := context.Background()

	vectors, err := p.Embed(ctx, []string{"Vector search", "vector SEARCH", "bread recipe"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 || len(vectors[0]) != 64 {
		t.Fatalf("unexpected shape: %d vectors of %d", len(vectors), len(vectors[0]))
	}

	// Same tokens after lowercasing give the same vector
	for i := range vectors[0] {
		if vectors[0][i] != vectors[1][i] {
			t.Fatalf("expected identical vectors, differ at %d", i)
		}
	}

	var norm float64
	for _, v := range vectors[2] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("vector not unit length: %v", norm)
	}

	if p.Dimension() != 64 {
		t.Errorf("Dimension() = %d, want 64", p.Dimension())
	}
	if NewLocalProvider(0, nil).Dimension() != LocalDimension {
		t.Error("zero dimension should select LocalDimension")
	}

	if _, err := p.Embed(ctx, []string{""}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Embed(empty) error = %v, want ErrInvalidInput", err)
	}
}

func TestLocalProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLocalProvider(8, nil).Embed(ctx, []string{"x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Embed() error = %v, want context.Canceled", err)
	}
}

// countingEmbedder records how many texts reach the provider
type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	short bool
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	if c.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int { return 1 }
func (c *countingEmbedder) Model() string  { return "counting" }

func TestCached_ForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, NewCache(10))
	ctx := context.Background()

	if _, err := c.Embed(ctx, []string{"a", "bb"}); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	vectors, err := c.Embed(ctx, []string{"bb", "ccc", "a"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(inner.calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(inner.calls))
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "ccc" {
		t.Errorf("second call = %v, want [ccc]", inner.calls[1])
	}
	want := []float32{2, 3, 1}
	for i, v := range vectors {
		if v[0] != want[i] {
			t.Errorf("vector %d = %v, want %v", i, v[0], want[i])
		}
	}

	if c.Model() != "counting" || c.Dimension() != 1 {
		t.Error("Cached should report the wrapped provider's model and dimension")
	}
}

func TestCached_ProviderErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	c := NewCached(&countingEmbedder{err: boom}, nil)
	_, err := c.Embed(ctx, []string{"a"})
	if !errors.Is(err, ErrProviderFailed) || !errors.Is(err, boom) {
		t.Errorf("Embed() error = %v, want ErrProviderFailed wrapping boom", err)
	}

	c = NewCached(&countingEmbedder{short: true}, nil)
	if _, err := c.Embed(ctx, []string{"a", "b"}); !errors.Is(err, ErrProviderFailed) {
		t.Errorf("Embed() error = %v, want ErrProviderFailed", err)
	}
}
