// Package mcp implements the Model Context Protocol (MCP) server for ragcore.
//
// The server exposes the chunking and retrieval core as tools:
//   - chunk_text: split a document into token-budget chunks
//   - chunk_hierarchy: group document lines under their headings
//   - index_document: chunk, store and embed a document
//   - delete_document: remove a document from the index
//   - search: rank indexed chunks against a question
//   - build_query: show the full-text query derived from a question
//   - add_synonyms: extend the shared synonym dictionary
//   - get_status: report index statistics and health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout is reserved for protocol messages.
//
// # Tool: chunk_text
//
// The splitter parameters default to the RAGCORE_* configuration and may
// be overridden per call:
//
//	Request:
//	{
//	  "name": "chunk_text",
//	  "arguments": {
//	    "text": "one two three. four five six.",
//	    "chunk_token_size": 4,
//	    "delimiters": ["."]
//	  }
//	}
//
//	Response:
//	{
//	  "chunks": [{"text": "one two three."}, {"text": " four five six."}],
//	  "count": 2,
//	  "elapsed_ms": 0
//	}
//
// Sections may be passed instead of text, each with an optional position
// tag. Chunks built from tagged sections carry their positions as
// [[pages...], x0, y0, x1, y1] tuples.
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {
//	    "query": "how are storage engines compared",
//	    "limit": 5,
//	    "search_mode": "hybrid"
//	  }
//	}
//
// Hybrid search unions full-text and vector candidates and reranks them by
// a weighted blend of token and vector similarity. Keyword and vector modes
// use one source and one score component.
//
// # Error Handling
//
// Tool failures are returned as MCPError values carrying a JSON-RPC code:
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Chunking stage failed
//	-32002  Document is being indexed
//	-32003  Document not indexed
//	-32004  Empty query
package mcp
