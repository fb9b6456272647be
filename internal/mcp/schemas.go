package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ragcore/internal/component"
)

// documentProperties are the inputs shared by every tool that takes a document
func documentProperties() map[string]interface{} {
	return map[string]interface{}{
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Plain document text; ignored when sections is set",
		},
		"sections": map[string]interface{}{
			"type":        "array",
			"description": "Parsed sections in document order",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type": "string",
					},
					"position_tag": map[string]interface{}{
						"type":        "string",
						"description": "Zero or more @@page\\tx0\\ty0\\tx1\\ty1## segments",
					},
				},
				"required": []string{"text"},
			},
		},
	}
}

// stageSchema builds a tool schema from a stage parameter struct. Stage
// parameters become optional tool arguments and exception_default_value is
// not exposed.
func stageSchema[T any](required []string) (mcp.ToolInputSchema, error) {
	schema, err := component.ParamsSchema[T]()
	if err != nil {
		return mcp.ToolInputSchema{}, err
	}
	params, ok := schema["properties"].(map[string]any)
	if !ok {
		return mcp.ToolInputSchema{}, fmt.Errorf("parameter schema has no properties")
	}

	props := documentProperties()
	for name, p := range params {
		if name == "exception_default_value" {
			continue
		}
		props[name] = p
	}
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}, nil
}

// chunkTextTool returns the tool definition for chunk_text
func chunkTextTool() (mcp.Tool, error) {
	schema, err := stageSchema[component.SplitterParams](nil)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("chunk_text schema: %w", err)
	}
	return mcp.Tool{
		Name:        "chunk_text",
		Description: "Split document text into token-budget chunks at delimiter boundaries",
		InputSchema: schema,
	}, nil
}

// chunkHierarchyTool returns the tool definition for chunk_hierarchy
func chunkHierarchyTool() (mcp.Tool, error) {
	schema, err := stageSchema[component.HierarchyParams]([]string{"levels", "hierarchy"})
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("chunk_hierarchy schema: %w", err)
	}
	return mcp.Tool{
		Name:        "chunk_hierarchy",
		Description: "Group document lines under their headings and emit one chunk per heading path",
		InputSchema: schema,
	}, nil
}

// indexDocumentTool returns the tool definition for index_document
func indexDocumentTool() mcp.Tool {
	props := documentProperties()
	props["doc_id"] = map[string]interface{}{
		"type":        "string",
		"description": "Document identifier; its previous chunks are replaced",
	}
	props["force_reindex"] = map[string]interface{}{
		"type":        "boolean",
		"description": "If true, store the chunks even when they did not change",
		"default":     false,
	}
	return mcp.Tool{
		Name:        "index_document",
		Description: "Chunk, store and embed a document so it becomes searchable",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"doc_id"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and its chunks from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Document identifier",
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Search indexed chunks with a natural-language question",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search question",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), vector (semantic only), or keyword (full-text only)",
					"enum":        []string{"hybrid", "vector", "keyword"},
					"default":     "hybrid",
				},
				"min_should_match": map[string]interface{}{
					"type":        "number",
					"description": "Share of query terms a match must contain",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// buildQueryTool returns the tool definition for build_query
func buildQueryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_query",
		Description: "Show the weighted full-text query and keywords derived from a question",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language question",
				},
				"min_should_match": map[string]interface{}{
					"type":        "number",
					"description": "Share of query terms a match must contain",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"question"},
		},
	}
}

// addSynonymsTool returns the tool definition for add_synonyms
func addSynonymsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_synonyms",
		Description: "Add or replace entries of the shared synonym dictionary",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entries": map[string]interface{}{
					"type":        "object",
					"description": "Term to synonym list",
					"additionalProperties": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
			},
			Required: []string{"entries"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
