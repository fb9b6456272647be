// Package indexer coordinates the document ingestion pipeline.
//
// The indexer runs a chunking stage over each document, replaces the
// document's chunks in storage and optionally embeds the new chunks,
// managing concurrency and per-document failures.
//
// # Basic Usage
//
//	stage := component.NewSplitterStage(params, tok)
//	idx := indexer.New(store, stage,
//	    indexer.WithEmbedder(emb),
//	    indexer.WithLogger(logger))
//
//	stats, err := idx.IndexDocuments(ctx, []indexer.Document{
//	    {ID: "manual.pdf", Sections: sections},
//	}, &indexer.Config{Workers: 4})
//
//	fmt.Printf("Indexed %d documents in %v\n", stats.DocumentsIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Chunk: invoke the stage through a component.Runner, so stage
//     failures, panics and timeouts come back as outputs
//  2. Incremental Decision: compare chunk content hashes with the stored
//     chunks and skip unchanged documents
//  3. Store: replace the document's chunks in one transaction
//  4. Embed: embed chunks that carry text and store the vectors
//
// # Error Handling
//
// A failing document is counted in Statistics.DocumentsFailed and described
// in Statistics.ErrorMessages; the other documents still complete.
// Cancelling the context aborts the whole run.
//
// A document that is already being indexed by another run fails with
// ErrIndexingInProgress. A batch naming the same document twice is rejected
// with ErrDuplicateDocument before any work starts.
package indexer
