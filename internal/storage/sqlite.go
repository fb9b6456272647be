package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/searcher"
	"github.com/dshills/ragcore/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyQuery is returned when a text search has no terms
	ErrEmptyQuery = errors.New("empty search query")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db        *sql.DB
	tokenizer Tokenizer
	logger    *zap.Logger
}

// Option configures a SQLiteStorage
type Option func(*SQLiteStorage)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = logging.OrNop(l).Named("storage") }
}

// WithTokenizer sets the tokenizer used to build the full-text index.
// Without one, text is lowercased and split on whitespace.
func WithTokenizer(t Tokenizer) Option {
	return func(s *SQLiteStorage) { s.tokenizer = t }
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, committing only when fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) tokenize(text string) []string {
	if s.tokenizer != nil {
		return s.tokenizer.Tokenize(text)
	}
	return strings.Fields(strings.ToLower(text))
}

// Chunk operations

// SaveChunks replaces the chunks of docID and returns the new chunk IDs in
// order. Chunk images without a store reference are persisted alongside.
func (s *SQLiteStorage) SaveChunks(ctx context.Context, docID string, chunks []types.Chunk) ([]string, error) {
	if docID == "" {
		return nil, errors.New("document id cannot be empty")
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid chunk %d: %w", i, err)
		}
	}

	ids := make([]string, len(chunks))
	err := s.withTx(ctx, func(q querier) error {
		now := time.Now()
		_, err := q.ExecContext(ctx, `
			INSERT INTO documents (id, chunk_count, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET chunk_count = excluded.chunk_count, updated_at = excluded.updated_at
		`, docID, len(chunks), now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}

		if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
			return fmt.Errorf("failed to delete old chunks: %w", err)
		}

		for i := range chunks {
			id, err := s.insertChunkWithQuerier(ctx, q, docID, i, &chunks[i], now)
			if err != nil {
				return err
			}
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("saved chunks",
		zap.String("doc_id", docID),
		zap.Int("count", len(chunks)))
	return ids, nil
}

func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, docID string, seq int, c *types.Chunk, now time.Time) (string, error) {
	id := uuid.NewString()

	positions := c.Positions
	if positions == nil {
		positions = []types.Position{}
	}
	posJSON, err := json.Marshal(positions)
	if err != nil {
		return "", fmt.Errorf("failed to encode positions: %w", err)
	}

	imageRef := c.ImageRef
	if imageRef == "" && c.Image != nil {
		if imageRef, err = s.putImageWithQuerier(ctx, q, id, c.Image); err != nil {
			return "", err
		}
	}

	hash := c.ContentHash()
	_, err = q.ExecContext(ctx, `
		INSERT INTO chunks (chunk_id, doc_id, seq, content, content_tokens, content_hash, image_ref, positions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, docID, seq, c.Text, strings.Join(s.tokenize(c.Text), " "), hash[:],
		sql.NullString{String: imageRef, Valid: imageRef != ""}, string(posJSON), now)
	if err != nil {
		return "", fmt.Errorf("failed to insert chunk %d: %w", seq, err)
	}
	return id, nil
}

const chunkColumns = `chunk_id, doc_id, seq, content, content_tokens, content_hash, image_ref, positions, created_at`

func scanChunk(scan func(dest ...interface{}) error) (*StoredChunk, error) {
	var (
		c        StoredChunk
		tokens   string
		hash     []byte
		imageRef sql.NullString
		posJSON  string
	)
	if err := scan(&c.ID, &c.DocID, &c.Seq, &c.Text, &tokens, &hash, &imageRef, &posJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Tokens = strings.Fields(tokens)
	copy(c.ContentHash[:], hash)
	c.ImageRef = imageRef.String
	if err := json.Unmarshal([]byte(posJSON), &c.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions of chunk %s: %w", c.ID, err)
	}
	return &c, nil
}

// GetChunk returns one chunk by ID
func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID string) (*StoredChunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE chunk_id = ?", chunkID)
	c, err := scanChunk(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChunks returns the chunks of a document in sequence order
func (s *SQLiteStorage) ListChunks(ctx context.Context, docID string) ([]*StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE doc_id = ? ORDER BY seq", docID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*StoredChunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunks removes a document and all of its chunks
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, docID string) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(q querier) error {
		result, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID)
		if err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)

		_, err = q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", docID)
		return err
	})
	return deleted, err
}

// Embedding operations

// UpsertEmbedding stores the vector of a chunk
func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, chunkID string, vector []float32, model string) error {
	if len(vector) == 0 {
		return errors.New("embedding vector cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, model, created_at)
		SELECT id, ?, ?, ?, ? FROM chunks WHERE chunk_id = ?
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model,
			created_at = excluded.created_at
	`, serializeVector(vector), len(vector), model, time.Now(), chunkID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	return nil
}

// Search operations

// SearchVector ranks embedded chunks by cosine similarity to queryVector
func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.db, queryVector, limit)
}

// SearchText ranks chunks by BM25 over their tokenized content. Any query
// term may match.
func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.db, s.tokenize(query), limit)
}

// Candidates loads chunks with their vectors and index tokens for reranking.
// Chunks without an embedding get a nil vector; unknown IDs are skipped.
func (s *SQLiteStorage) Candidates(ctx context.Context, chunkIDs []string) ([]searcher.Candidate, error) {
	return loadCandidates(ctx, s.db, chunkIDs)
}

// Image operations

// Put stores img as PNG under key and returns key as its reference.
// It lets the storage serve as the chunker's ImageStore.
func (s *SQLiteStorage) Put(ctx context.Context, key string, img image.Image) (string, error) {
	return s.putImageWithQuerier(ctx, s.db, key, img)
}

func (s *SQLiteStorage) putImageWithQuerier(ctx context.Context, q querier, key string, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image %s: %w", key, err)
	}

	size := img.Bounds().Size()
	_, err := q.ExecContext(ctx, `
		INSERT INTO images (key, width, height, data, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET width = excluded.width, height = excluded.height, data = excluded.data
	`, key, size.X, size.Y, buf.Bytes(), time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to store image %s: %w", key, err)
	}

	s.logger.Debug("stored image",
		zap.String("key", key),
		zap.String("size", humanize.Bytes(uint64(buf.Len()))))
	return key, nil
}

// GetImage loads an image stored by Put
func (s *SQLiteStorage) GetImage(ctx context.Context, ref string) (image.Image, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM images WHERE key = ?", ref).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", ref, err)
	}
	return img, nil
}

// Synonym operations

// UpsertSynonyms writes synonym lists keyed by lowercased term
func (s *SQLiteStorage) UpsertSynonyms(ctx context.Context, entries map[string][]string) error {
	return s.withTx(ctx, func(q querier) error {
		now := time.Now()
		for term, syns := range entries {
			key := strings.ToLower(strings.Join(strings.Fields(term), " "))
			if key == "" {
				continue
			}
			if syns == nil {
				syns = []string{}
			}
			data, err := json.Marshal(syns)
			if err != nil {
				return fmt.Errorf("failed to encode synonyms of %q: %w", term, err)
			}
			_, err = q.ExecContext(ctx, `
				INSERT INTO synonyms (term, synonyms, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(term) DO UPDATE SET synonyms = excluded.synonyms, updated_at = excluded.updated_at
			`, key, string(data), now)
			if err != nil {
				return fmt.Errorf("failed to upsert synonyms of %q: %w", term, err)
			}
		}
		return nil
	})
}

// LoadSynonyms returns the whole dictionary in the same shape as the JSON
// synonym file: term -> []any of strings. It satisfies synonym.Source
// through synonym.SourceFunc.
func (s *SQLiteStorage) LoadSynonyms(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT term, synonyms FROM synonyms")
	if err != nil {
		return nil, fmt.Errorf("failed to load synonyms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]any)
	for rows.Next() {
		var term, data string
		if err := rows.Scan(&term, &data); err != nil {
			return nil, err
		}
		var syns []any
		if err := json.Unmarshal([]byte(data), &syns); err != nil {
			return nil, fmt.Errorf("failed to decode synonyms of %q: %w", term, err)
		}
		out[term] = syns
	}
	return out, rows.Err()
}

// Status counts stored rows and reports the database size
func (s *SQLiteStorage) Status(ctx context.Context) (*Status, error) {
	status := &Status{}
	counts := []struct {
		table string
		dst   *int
	}{
		{"documents", &status.DocumentsCount},
		{"chunks", &status.ChunksCount},
		{"embeddings", &status.EmbeddingsCount},
		{"images", &status.ImagesCount},
		{"synonyms", &status.SynonymsCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	version, err := currentVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if version != nil {
		status.SchemaVersion = version.String()
	}

	// Calculate database size
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeBytes = pageCount * pageSize
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		VectorExtension:     VectorExtensionAvailable,
	}
	return status, nil
}
