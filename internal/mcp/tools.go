package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/dshills/ragcore/internal/component"
	"github.com/dshills/ragcore/internal/indexer"
	"github.com/dshills/ragcore/internal/query"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeStageFailed        = -32001 // A chunking stage reported an error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Document not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const (
	maxSearchLimit   = 100
	maxReportedError = 5
)

// ErrNoDocumentInput is returned when neither text nor sections is given
var ErrNoDocumentInput = errors.New("either text or sections is required")

// handleChunkText handles the chunk_text tool invocation
func (s *Server) handleChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	inputs, err := documentInputs(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	// The stage reads its parameter overrides from the inputs
	for _, key := range []string{"chunk_token_size", "delimiters", "overlapped_percent"} {
		if v, ok := args[key]; ok {
			inputs[key] = v
		}
	}

	return s.runStage(ctx, s.splitterStage(s.defaultSplitterParams()), inputs)
}

// handleChunkHierarchy handles the chunk_hierarchy tool invocation
func (s *Server) handleChunkHierarchy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	inputs, err := documentInputs(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	levels, err := parseLevels(args["levels"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid levels", map[string]interface{}{
			"param":  "levels",
			"reason": err.Error(),
		})
	}
	depth, err := cast.ToIntE(args["hierarchy"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid hierarchy", map[string]interface{}{
			"param":  "hierarchy",
			"reason": err.Error(),
		})
	}

	stage := s.hierarchyStage(component.HierarchyParams{Levels: levels, Hierarchy: depth})
	return s.runStage(ctx, stage, inputs)
}

// runStage invokes a chunking stage and renders its chunks
func (s *Server) runStage(ctx context.Context, stage component.Component, inputs map[string]any) (*mcp.CallToolResult, error) {
	out := s.runner.Invoke(ctx, stage, inputs)
	if msg, failed := out.Error(); failed {
		return nil, newMCPError(ErrorCodeStageFailed, stage.Name()+" stage failed", map[string]interface{}{
			"error": msg,
		})
	}
	chunks, _ := out[component.OutputChunks].([]types.Chunk)

	rendered := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		rendered[i] = formatChunk(c.Text, c.ImageRef, c.Positions)
	}
	response := map[string]interface{}{
		"chunks":     rendered,
		"count":      len(chunks),
		"elapsed_ms": out.Elapsed().Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexDocument handles the index_document tool invocation
func (s *Server) handleIndexDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID := getStringDefault(args, "doc_id", "")
	if docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	sections, err := documentSections(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}

	config := &indexer.Config{
		Workers:      1,
		ForceReindex: getBoolDefault(args, "force_reindex", false),
	}

	// Run indexing
	stats, err := s.indexer.IndexDocuments(ctx, []indexer.Document{{ID: docID, Sections: sections}}, config)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if stats.DocumentsFailed > 0 {
		code := ErrorCodeInternalError
		if strings.Contains(stats.ErrorMessages[0], indexer.ErrIndexingInProgress.Error()) {
			code = ErrorCodeIndexingInProgress
		}
		return nil, newMCPError(code, "indexing failed", map[string]interface{}{
			"errors": stats.ErrorMessages,
		})
	}

	// Format response
	response := map[string]interface{}{
		"indexed":           stats.DocumentsIndexed > 0,
		"skipped":           stats.DocumentsSkipped > 0,
		"doc_id":            docID,
		"chunks_created":    stats.ChunksCreated,
		"embeddings_stored": stats.EmbeddingsStored,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	docID := getStringDefault(args, "doc_id", "")
	if docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	n, err := s.storage.DeleteChunks(ctx, docID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete document", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if n == 0 {
		return nil, newMCPError(ErrorCodeNotIndexed, "document not indexed", map[string]interface{}{
			"doc_id": docID,
		})
	}

	response := map[string]interface{}{
		"deleted":        true,
		"doc_id":         docID,
		"chunks_deleted": n,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question := getStringDefault(args, "query", "")
	if strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	// Parse optional parameters
	limit := getIntDefault(args, "limit", retriever.DefaultLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	searchMode := retriever.Mode(getStringDefault(args, "search_mode", string(retriever.ModeHybrid)))
	switch searchMode {
	case retriever.ModeHybrid, retriever.ModeVector, retriever.ModeKeyword:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   searchMode,
			"allowed": []retriever.Mode{retriever.ModeHybrid, retriever.ModeVector, retriever.ModeKeyword},
		})
	}

	resp, err := s.retriever.Search(ctx, retriever.Request{
		Question:       question,
		Limit:          limit,
		Mode:           searchMode,
		MinShouldMatch: getFloatDefault(args, "min_should_match", s.cfg.MinShouldMatch),
	})
	switch {
	case errors.Is(err, query.ErrEmptyQuestion):
		return nil, newMCPError(ErrorCodeEmptyQuery, "query has no searchable terms", nil)
	case errors.Is(err, retriever.ErrNoEmbedder):
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		m := formatChunk(r.Text, r.ImageRef, r.Positions)
		m["chunk_id"] = r.ChunkID
		m["doc_id"] = r.DocID
		m["score"] = r.Score
		m["token_score"] = r.TokenScore
		m["vector_score"] = r.VectorScore
		results[i] = m
	}

	response := map[string]interface{}{
		"results":     results,
		"keywords":    resp.Keywords,
		"query":       resp.Query.MatchingText(),
		"search_mode": searchMode,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBuildQuery handles the build_query tool invocation
func (s *Server) handleBuildQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	question := getStringDefault(args, "question", "")
	expr, keywords, err := s.builder.Question(question, getFloatDefault(args, "min_should_match", s.cfg.MinShouldMatch))
	if errors.Is(err, query.ErrEmptyQuestion) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to build query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	body, err := expr.Body()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to render query", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"matching_text":        expr.MatchingText(),
		"fields":               expr.Fields,
		"minimum_should_match": expr.MinimumShouldMatch,
		"keywords":             keywords,
		"body":                 json.RawMessage(body),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddSynonyms handles the add_synonyms tool invocation
func (s *Server) handleAddSynonyms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	entries, err := cast.ToStringMapStringSliceE(args["entries"])
	if err != nil || len(entries) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "entries must be a non-empty object of string lists", map[string]interface{}{
			"param": "entries",
		})
	}

	if err := s.storage.UpsertSynonyms(ctx, entries); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to store synonyms", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := s.synonyms.Refresh(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to refresh synonyms", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"terms_added": len(entries),
		"version":     s.synonyms.Version(),
		"total_terms": s.synonyms.Snapshot().Len(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Format response
	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"documents_count":  status.DocumentsCount,
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"images_count":     status.ImagesCount,
			"synonyms_count":   status.SynonymsCount,
			"index_size":       humanize.Bytes(uint64(status.SizeBytes)),
			"schema_version":   status.SchemaVersion,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"vector_extension":     status.Health.VectorExtension,
		},
		"synonyms": map[string]interface{}{
			"version": s.synonyms.Version(),
			"terms":   s.synonyms.Snapshot().Len(),
		},
		"embedder": map[string]interface{}{
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		},
		"build": map[string]interface{}{
			"mode":   storage.BuildMode,
			"driver": storage.DriverName,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// documentInputs maps the text or sections argument onto stage inputs
func documentInputs(args map[string]interface{}) (map[string]any, error) {
	if raw, ok := args["sections"]; ok && raw != nil {
		return map[string]any{component.InputSections: raw}, nil
	}
	if text, ok := args["text"].(string); ok {
		return map[string]any{component.InputText: text}, nil
	}
	return nil, ErrNoDocumentInput
}

// documentSections decodes the text or sections argument
func documentSections(args map[string]interface{}) ([]types.Section, error) {
	if raw, ok := args["sections"]; ok && raw != nil {
		return component.ParseSections(raw)
	}
	if text, ok := args["text"].(string); ok {
		return []types.Section{{Text: text}}, nil
	}
	return nil, ErrNoDocumentInput
}

// parseLevels decodes a list of pattern lists
func parseLevels(raw any) ([][]string, error) {
	groups, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, err
	}
	levels := make([][]string, len(groups))
	for i, g := range groups {
		if levels[i], err = cast.ToStringSliceE(g); err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
	}
	return levels, nil
}

// formatChunk renders the fields shared by chunk listings and search hits
func formatChunk(text, imageRef string, positions []types.Position) map[string]interface{} {
	m := map[string]interface{}{
		"text": text,
	}
	if imageRef != "" {
		m["image_ref"] = imageRef
	}
	if len(positions) > 0 {
		m["positions"] = positions
	}
	return m
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key]; ok {
		if b, err := cast.ToBoolE(val); err == nil {
			return b
		}
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key]; ok {
		if n, err := cast.ToIntE(val); err == nil {
			return n
		}
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key]; ok {
		if f, err := cast.ToFloat64E(val); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
