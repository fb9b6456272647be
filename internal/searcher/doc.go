// Package searcher re-scores retrieved chunks by blending vector and lexical similarity.
//
// # Blended Score
//
// For a query (vector q, term weights Q) and a candidate (vector d, term weights D):
//
//	score = vtWeight * cosine(q, d) + tkWeight * overlap(Q, D)
//
// The defaults are vtWeight = 0.7 and tkWeight = 0.3.
//
// # Lexical Overlap
//
// The overlap is asymmetric: only the presence of query terms in the
// candidate counts, never the reverse.
//
//	overlap(Q, D) = (Σ_{t∈Q∩D} Q[t]) / (Σ_{t∈Q} Q[t]) / max(1, sqrt(log10(max(|Q|, |D|))))
//
// A 1e-9 floor is added to both sums, so an empty query scores 1e-9/1e-9
// against anything rather than dividing by zero.
//
// # Basic Usage
//
//	scorer := searcher.NewScorer(dealer, searcher.WithLogger(logger))
//
//	_, keywords, _ := builder.Question(question, 0.6)
//	ranked, err := scorer.Rerank(queryVector, keywords, candidates,
//	    searcher.DefaultVectorWeight, searcher.DefaultTokenWeight)
//	if err != nil {
//	    return err
//	}
//	for _, r := range ranked {
//	    fmt.Printf("%s %.3f (tk %.3f, vec %.3f)\n", r.ID, r.Score, r.TokenScore, r.VectorScore)
//	}
//
// # Caching
//
// Candidate term-weight maps are computed with the term-weighting engine and
// kept in an LRU cache keyed by the token list's SHA-256, so candidates that
// reappear across reranks are weighted once.
package searcher
