package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/ragcore/internal/searcher"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]VectorResult, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	// Use SQL-side distance when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, limit)
	}
	return searchVectorFallback(ctx, db, queryVector, limit)
}

// searchVectorOptimized uses the sqlite-vec extension to rank in SQL
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]VectorResult, error) {
	// vec_distance_cosine returns a distance (lower is better)
	query := `
		SELECT
			c.chunk_id,
			1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
		ORDER BY similarity DESC
	`
	args := []interface{}{serializeVector(queryVector), len(queryVector)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ChunkID, &r.SimilarityScore); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchVectorFallback scores every embedding in Go (purego builds)
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, limit int) ([]VectorResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.chunk_id, e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
	`, len(queryVector))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0)
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, err
		}
		results = append(results, VectorResult{
			ChunkID:         chunkID,
			SimilarityScore: searcher.CosineSimilarity(queryVector, deserializeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, db *sql.DB, terms []string, limit int) ([]TextResult, error) {
	match := ftsQuery(terms)
	if match == "" {
		return nil, ErrEmptyQuery
	}

	query := `
		SELECT c.chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON chunks_fts.rowid = c.id
		WHERE chunks_fts MATCH ?
		ORDER BY score
	`
	args := []interface{}{match}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.ChunkID, &r.BM25Score); err != nil {
			return nil, err
		}
		// BM25 is negative with lower being better; map it into (0, 1]
		r.BM25Score = 1.0 / (1.0 + math.Abs(r.BM25Score)/50.0)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes every term as an FTS5 string and ORs them together, so
// no term is read as an operator
func ftsQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// loadCandidates builds rerank candidates in the order of chunkIDs
func loadCandidates(ctx context.Context, db *sql.DB, chunkIDs []string) ([]searcher.Candidate, error) {
	if len(chunkIDs) == 0 {
		return []searcher.Candidate{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, `
		SELECT c.chunk_id, c.content_tokens, e.vector
		FROM chunks c
		LEFT JOIN embeddings e ON c.id = e.chunk_id
		WHERE c.chunk_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]searcher.Candidate, len(chunkIDs))
	for rows.Next() {
		var (
			id     string
			tokens string
			blob   []byte
		)
		if err := rows.Scan(&id, &tokens, &blob); err != nil {
			return nil, err
		}
		c := searcher.Candidate{ID: id, Tokens: strings.Fields(tokens)}
		if blob != nil {
			c.Vector = deserializeVector(blob)
		}
		byID[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]searcher.Candidate, 0, len(byID))
	for _, id := range chunkIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
