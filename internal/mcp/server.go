package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/component"
	"github.com/dshills/ragcore/internal/config"
	"github.com/dshills/ragcore/internal/embedder"
	"github.com/dshills/ragcore/internal/indexer"
	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/internal/query"
	"github.com/dshills/ragcore/internal/retriever"
	"github.com/dshills/ragcore/internal/searcher"
	"github.com/dshills/ragcore/internal/storage"
	"github.com/dshills/ragcore/internal/synonym"
	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/internal/tokenizer"
)

const (
	// ServerName is the MCP server name
	ServerName = "ragcore"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// memoryDB is used when no database path is configured
	memoryDB = ":memory:"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	cfg       config.Config
	storage   storage.Storage
	tokenizer *tokenizer.Tokenizer
	synonyms  *synonym.Cache
	builder   *query.Builder
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
	runner    *component.Runner
	joiner    *chunker.ImageJoiner
	embedder  embedder.Embedder
	logger    *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(l) }
}

// WithEmbedder replaces the built-in local embedder
func WithEmbedder(e embedder.Embedder) Option {
	return func(s *Server) { s.embedder = e }
}

// NewServer creates a new MCP server instance
func NewServer(cfg config.Config, res *Resources, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if res == nil {
		res = &Resources{Dictionary: tokenizer.EmptyDictionary()}
	}

	s := &Server{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = memoryDB
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s.tokenizer = tokenizer.New(res.Dictionary)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath,
		storage.WithTokenizer(s.tokenizer),
		storage.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.storage = store

	// Synonyms start from the resource file and refresh from the store
	s.synonyms = synonym.NewCache(synonym.SourceFunc(store.LoadSynonyms),
		synonym.WithSnapshot(res.Synonyms),
		synonym.WithRefreshThresholds(cfg.SynonymRefreshCalls, cfg.SynonymRefreshInterval),
		synonym.WithLogger(s.logger))

	if s.embedder == nil {
		s.embedder = embedder.NewCached(
			embedder.NewLocalProvider(embedder.LocalDimension, s.tokenizer),
			embedder.NewCache(0),
			embedder.WithLogger(s.logger))
	}

	dealer := termweight.NewDealer(s.tokenizer, res.NER, res.DocFreq)
	s.builder = query.NewBuilder(dealer, s.synonyms,
		query.WithCacheSize(cfg.QueryCacheSize),
		query.WithLogger(s.logger))
	scorer := searcher.NewScorer(dealer, searcher.WithLogger(s.logger))
	s.retriever = retriever.New(store, s.builder, scorer,
		retriever.WithEmbedder(s.embedder),
		retriever.WithLogger(s.logger))

	s.runner = component.NewRunner(
		component.WithTimeout(cfg.ComponentTimeout),
		component.WithLogger(s.logger))
	s.joiner = chunker.NewImageJoiner(semaphore.NewWeighted(int64(cfg.ImageConcurrency)),
		chunker.WithImageStore(store),
		chunker.WithJoinerLogger(s.logger))

	// Documents are indexed with the configured splitter
	s.indexer = indexer.New(store, s.splitterStage(s.defaultSplitterParams()),
		indexer.WithEmbedder(s.embedder),
		indexer.WithRunner(s.runner),
		indexer.WithLogger(s.logger))

	// Create MCP server
	s.mcp = server.NewMCPServer(ServerName, ServerVersion)

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close waits for a pending synonym refresh and closes the store
func (s *Server) Close() error {
	s.synonyms.Wait()
	return s.storage.Close()
}

func (s *Server) defaultSplitterParams() component.SplitterParams {
	return component.SplitterParams{
		ChunkTokenSize:    s.cfg.ChunkTokenBudget,
		Delimiters:        chunker.ParseDelimiters(s.cfg.Delimiters),
		OverlappedPercent: s.cfg.OverlapPercent,
	}
}

func (s *Server) splitterStage(params component.SplitterParams) *component.SplitterStage {
	return component.NewSplitterStage(params, s.tokenizer,
		component.WithImageJoiner(s.joiner),
		component.WithStageLogger(s.logger))
}

func (s *Server) hierarchyStage(params component.HierarchyParams) *component.HierarchyStage {
	return component.NewHierarchyStage(params,
		component.WithImageJoiner(s.joiner),
		component.WithStageLogger(s.logger))
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	chunkText, err := chunkTextTool()
	if err != nil {
		return err
	}
	chunkHierarchy, err := chunkHierarchyTool()
	if err != nil {
		return err
	}

	s.mcp.AddTool(chunkText, s.handleChunkText)
	s.mcp.AddTool(chunkHierarchy, s.handleChunkHierarchy)
	s.mcp.AddTool(indexDocumentTool(), s.handleIndexDocument)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(buildQueryTool(), s.handleBuildQuery)
	s.mcp.AddTool(addSynonymsTool(), s.handleAddSynonyms)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
