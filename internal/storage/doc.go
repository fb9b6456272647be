// Package storage provides SQLite-based persistence for assembled chunks.
//
// The storage layer manages:
//   - Documents and their ordered chunks
//   - Chunk positions and content hashes
//   - Chunk images (PNG encoded)
//   - Vector embeddings
//   - Full-text search indexes over tokenized chunk content
//   - The shared synonym dictionary
//
// # Database Schema
//
// Tables:
//   - documents: Document IDs and chunk counts
//   - chunks: Chunk text, tokens, positions and image references
//   - chunks_fts: FTS5 index over chunk tokens
//   - embeddings: Vector embeddings for chunks
//   - images: Image blobs keyed by reference
//   - synonyms: Term to synonym list
//
// Schema versions are tracked with semantic versions and applied on open.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("chunks.db",
//	    storage.WithLogger(logger),
//	    storage.WithTokenizer(tok))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	// Replace the chunks of a document
//	ids, err := store.SaveChunks(ctx, "doc-1", chunks)
//
//	// Attach embeddings
//	for i, id := range ids {
//	    err = store.UpsertEmbedding(ctx, id, vectors[i], "model")
//	}
//
// SaveChunks replaces every chunk of the document in one transaction.
//
// # Search
//
//	vec, err := store.SearchVector(ctx, queryVector, 10)
//	txt, err := store.SearchText(ctx, "user authentication", 10)
//
//	// Load vectors and tokens for hybrid reranking
//	cands, err := store.Candidates(ctx, ids)
//	ranked, err := scorer.Rerank(queryVector, keywords, cands, 0.3, 0.7)
//
// Text search ORs the tokenized query terms and normalizes BM25 into (0, 1].
//
// # Images
//
// SQLiteStorage implements the chunker's ImageStore, so joined chunk images
// can be persisted during assembly:
//
//	joiner := chunker.NewImageJoiner(nil, chunker.WithImageStore(store))
//
// # Synonyms
//
// LoadSynonyms returns the same shape as a synonym JSON file and feeds a
// refreshing cache:
//
//	cache := synonym.NewCache(synonym.SourceFunc(store.LoadSynonyms))
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Ranks vectors in SQL with the sqlite-vec extension
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - Pure Go vector operations (slower)
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
