package searcher

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/dshills/ragcore/internal/termweight"
)

// hashVector generates a deterministic pseudo-random vector from text
func hashVector(text string, dimension int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vector := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		idx := (i * 4) % 32
		val := binary.BigEndian.Uint32(hash[idx : idx+4])
		vector[i] = (float32(val)/float32(1<<32))*2 - 1
	}
	return vector
}

func benchmarkCandidates(n, dimension int) []Candidate {
	candidates := make([]Candidate, n)
	for i := range candidates {
		candidates[i] = Candidate{
			ID:     fmt.Sprintf("chunk-%d", i),
			Vector: hashVector(fmt.Sprintf("chunk-%d", i), dimension),
			Tokens: []string{"vector", "index", fmt.Sprintf("term%d", i%17), fmt.Sprintf("topic%d", i%5)},
		}
	}
	return candidates
}

func BenchmarkRerank(b *testing.B) {
	s := NewScorer(termweight.NewDealer(nil, nil, nil))
	candidates := benchmarkCandidates(1024, 384)
	q := hashVector("query", 384)
	keywords := []string{"vector", "index", "term3"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Rerank(q, keywords, candidates, DefaultVectorWeight, DefaultTokenWeight); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCosineSimilarity(b *testing.B) {
	x := hashVector("a", 1024)
	y := hashVector("b", 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cosineSimilarity(x, y)
	}
}
