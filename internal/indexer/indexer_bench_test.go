package indexer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/ragcore/internal/component"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/pkg/types"
)

func benchmarkDocuments(n, sections int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		secs := make([]types.Section, sections)
		for j := range secs {
			secs[j] = types.Section{Text: strings.Repeat(fmt.Sprintf("word%d ", j), 20) + "\n"}
		}
		docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Sections: secs}
	}
	return docs
}

func BenchmarkIndexDocuments(b *testing.B) {
	stage := component.NewSplitterStage(component.SplitterParams{
		ChunkTokenSize: 64,
		Delimiters:     []string{"\n", ". "},
	}, wordCounter{})

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			store, err := storage.NewSQLiteStorage(":memory:")
			if err != nil {
				b.Fatal(err)
			}
			defer func() { _ = store.Close() }()

			idx := New(store, stage, WithEmbedder(embedder.NewLocalProvider(64, nil)))
			docs := benchmarkDocuments(20, 10)
			cfg := &Config{Workers: workers, ForceReindex: true}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := idx.IndexDocuments(context.Background(), docs, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
