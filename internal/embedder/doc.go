// Package embedder defines the boundary to embedding models.
//
// Models run outside this module and plug in through the Embedder
// interface. The package adds an LRU cache in front of any provider and an
// offline hashing provider for tests and local runs.
//
// # Basic Usage
//
//	emb := embedder.NewCached(remote, embedder.NewCache(10000),
//	    embedder.WithLogger(logger))
//
//	vectors, err := emb.Embed(ctx, []string{chunk1.Text, chunk2.Text})
//
// Cached forwards only the texts it has not seen, in one batch, and keys
// entries by model and content hash.
//
// # Local Provider
//
// LocalProvider hashes tokens into signed buckets and normalizes the result.
// Texts that share tokens have positive cosine similarity:
//
//	local := embedder.NewLocalProvider(256, tok)
//
// # Error Handling
//
//	vectors, err := emb.Embed(ctx, texts)
//	if errors.Is(err, embedder.ErrInvalidInput) {
//	    // empty batch or empty text
//	}
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // the wrapped provider failed or returned the wrong count
//	}
package embedder
