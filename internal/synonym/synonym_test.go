package synonym

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	data  map[string]any
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Load(ctx context.Context) (map[string]any, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestSnapshotLookup(t *testing.T) {
	s := NewSnapshot(map[string]any{
		"Hello":     []any{"hi", "greetings", "hey"},
		"two words": "result",
		"bad":       42,
	}, 1)

	tests := []struct {
		name string
		term string
		topN int
		want []string
	}{
		{"found", "hello", 8, []string{"hi", "greetings", "hey"}},
		{"topN limit", "hello", 2, []string{"hi", "greetings"}},
		{"case insensitive", "HELLO", 8, []string{"hi", "greetings", "hey"}},
		{"whitespace collapsed", "  two \t words ", 8, []string{"result"}},
		{"bare string wrapped", "two words", 8, []string{"result"}},
		{"miss", "xyz", 8, []string{}},
		{"empty", "", 8, []string{}},
		{"no limit", "hello", 0, []string{"hi", "greetings", "hey"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Lookup(tt.term, tt.topN))
		})
	}
	assert.Equal(t, 2, s.Len(), "non-list values are dropped")
}

func TestSnapshotLookup_ReturnsCopy(t *testing.T) {
	s := NewSnapshot(map[string]any{"a": []any{"b", "c"}}, 1)
	got := s.Lookup("a", 8)
	got[0] = "mutated"
	assert.Equal(t, []string{"b", "c"}, s.Lookup("a", 8))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synonym.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"数据库":["db","database"],"索引":"index"}`), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "database"}, s.Lookup("数据库", 8))
	assert.Equal(t, []string{"index"}, s.Lookup("索引", 8))

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestCache_RefreshGating(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{data: map[string]any{"new": []any{"fresh"}}}
	c := NewCache(src,
		WithClock(clock.Now),
		WithRefreshThresholds(5, time.Hour),
		WithSnapshot(NewSnapshot(map[string]any{"old": []any{"stale"}}, 1)))

	// Enough calls but not enough time
	for i := 0; i < 5; i++ {
		c.Lookup("old", 8)
	}
	c.Wait()
	assert.Equal(t, int32(0), src.calls.Load())

	// Both thresholds passed
	clock.Advance(2 * time.Hour)
	c.Lookup("old", 8)
	c.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, uint64(2), c.Version())
	assert.Equal(t, []string{"fresh"}, c.Lookup("new", 8))
	assert.Equal(t, []string{}, c.Lookup("old", 8))

	// Time passed again but the lookup counter was reset
	clock.Advance(2 * time.Hour)
	c.Lookup("new", 8)
	c.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCache_FailedRefreshKeepsSnapshot(t *testing.T) {
	src := &fakeSource{err: errors.New("store unavailable")}
	c := NewCache(src, WithSnapshot(NewSnapshot(map[string]any{"a": "b"}, 1)))

	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(1), c.Version())
	assert.Equal(t, []string{"b"}, c.Lookup("a", 8))
}

func TestCache_EmptyRefreshKeepsSnapshot(t *testing.T) {
	src := &fakeSource{data: map[string]any{}}
	c := NewCache(src, WithSnapshot(NewSnapshot(map[string]any{"a": "b"}, 1)))

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, uint64(1), c.Version())
}

func TestCache_RefreshInProgress(t *testing.T) {
	c := NewCache(&fakeSource{})
	require.True(t, c.lock.TryAcquire())
	defer c.lock.Release()

	assert.ErrorIs(t, c.Refresh(context.Background()), ErrRefreshInProgress)
}

func TestCache_NoSource(t *testing.T) {
	c := NewCache(nil, WithRefreshThresholds(0, 0))
	assert.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{}, c.Lookup("anything", 8))
}

func TestCache_ConcurrentLookups(t *testing.T) {
	src := &fakeSource{data: map[string]any{"k": []any{"v"}}}
	c := NewCache(src, WithRefreshThresholds(1, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				got := c.Lookup("k", 8)
				assert.True(t, len(got) == 0 || got[0] == "v")
			}
		}()
	}
	wg.Wait()
	c.Wait()

	assert.Equal(t, []string{"v"}, c.Lookup("k", 8))
	c.Wait()
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synonym.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"k":["v"]}`), 0o644))

	c := NewCache(FileSource{Path: path})
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"v"}, c.Lookup("k", 8))
}
