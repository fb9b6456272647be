package component

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/chunker"
	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/pkg/types"
)

// StageOption configures a chunking stage
type StageOption func(*stageSettings)

type stageSettings struct {
	logger *zap.Logger
	joiner *chunker.ImageJoiner
}

// WithStageLogger sets the stage logger
func WithStageLogger(l *zap.Logger) StageOption {
	return func(s *stageSettings) { s.logger = logging.OrNop(l) }
}

// WithImageJoiner shares a joiner, and with it a concurrency limiter,
// between stages
func WithImageJoiner(j *chunker.ImageJoiner) StageOption {
	return func(s *stageSettings) { s.joiner = j }
}

func newStageSettings(opts []StageOption) stageSettings {
	s := stageSettings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.joiner == nil {
		s.joiner = chunker.NewImageJoiner(nil, chunker.WithJoinerLogger(s.logger))
	}
	return s
}

// SplitterParams configures the token-budget splitter stage
type SplitterParams struct {
	ChunkTokenSize    int      `json:"chunk_token_size" jsonschema:"required,minimum=1,default=512,description=Token budget of one chunk"`
	Delimiters        []string `json:"delimiters" jsonschema:"required,minItems=1,description=Cut points in priority order"`
	OverlappedPercent float64  `json:"overlapped_percent,omitempty" jsonschema:"minimum=0,maximum=1,description=Share of the previous chunk repeated at the start of the next"`
	ExceptionDefault  any      `json:"exception_default_value,omitempty" jsonschema:"description=Output published instead of an error"`
}

// withInputs applies per-invocation overrides carried in the inputs
func (p SplitterParams) withInputs(inputs map[string]any) (SplitterParams, error) {
	var err error
	if v, ok := inputs["chunk_token_size"]; ok {
		if p.ChunkTokenSize, err = cast.ToIntE(v); err != nil {
			return p, fmt.Errorf("invalid chunk_token_size: %w", err)
		}
	}
	if v, ok := inputs["delimiters"]; ok {
		if p.Delimiters, err = cast.ToStringSliceE(v); err != nil {
			return p, fmt.Errorf("invalid delimiters: %w", err)
		}
	}
	if v, ok := inputs["overlapped_percent"]; ok {
		if p.OverlappedPercent, err = cast.ToFloat64E(v); err != nil {
			return p, fmt.Errorf("invalid overlapped_percent: %w", err)
		}
	}
	return p, nil
}

// Config converts the parameters into a validated splitter configuration.
// Multi-character delimiters are kept whole and tried before single ones.
func (p SplitterParams) Config() (types.SplitterConfig, error) {
	var spec strings.Builder
	for _, d := range p.Delimiters {
		if utf8.RuneCountInString(d) > 1 {
			spec.WriteString("`" + d + "`")
		} else {
			spec.WriteString(d)
		}
	}

	cfg := types.SplitterConfig{
		TokenBudget:    p.ChunkTokenSize,
		Delimiters:     chunker.ParseDelimiters(spec.String()),
		OverlapPercent: p.OverlappedPercent,
	}
	if err := cfg.Validate(); err != nil {
		return types.SplitterConfig{}, err
	}
	return cfg, nil
}

// SplitterStage packs sections into token-budget chunks
type SplitterStage struct {
	params  SplitterParams
	counter chunker.TokenCounter
	joiner  *chunker.ImageJoiner
	logger  *zap.Logger
}

// NewSplitterStage creates the stage. Parameters are validated per
// invocation so that a bad configuration surfaces as a stage failure.
func NewSplitterStage(params SplitterParams, counter chunker.TokenCounter, opts ...StageOption) *SplitterStage {
	s := newStageSettings(opts)
	return &SplitterStage{
		params:  params,
		counter: counter,
		joiner:  s.joiner,
		logger:  s.logger.Named("splitter"),
	}
}

// Name implements Component
func (s *SplitterStage) Name() string { return "splitter" }

// DefaultOutput implements Defaulter
func (s *SplitterStage) DefaultOutput() (any, bool) {
	return s.params.ExceptionDefault, s.params.ExceptionDefault != nil
}

// Invoke implements Component
func (s *SplitterStage) Invoke(ctx context.Context, inv *Invocation) error {
	params, err := s.params.withInputs(inv.Inputs)
	if err != nil {
		return err
	}
	cfg, err := params.Config()
	if err != nil {
		return fmt.Errorf("invalid splitter parameters: %w", err)
	}

	sp, err := chunker.NewSplitter(cfg, s.counter,
		chunker.WithLogger(s.logger),
		chunker.WithImageJoiner(s.joiner))
	if err != nil {
		return err
	}

	sections, err := sectionsInput(inv.Inputs, false)
	if err != nil {
		return err
	}
	inv.Progress(0.1, fmt.Sprintf("Splitting %d sections", len(sections)))

	chunks, err := sp.SplitSections(ctx, sections)
	if err != nil {
		return err
	}
	inv.SetOutput(OutputChunks, chunks)
	return nil
}

// HierarchyParams configures the heading-hierarchy stage
type HierarchyParams struct {
	Levels           [][]string `json:"levels" jsonschema:"required,minItems=1,description=Heading patterns per level from top to bottom"`
	Hierarchy        int        `json:"hierarchy" jsonschema:"required,minimum=1,description=Depth at which the heading tree is cut into chunks"`
	ExceptionDefault any        `json:"exception_default_value,omitempty" jsonschema:"description=Output published instead of an error"`
}

// LevelSpec compiles the level patterns
func (p HierarchyParams) LevelSpec() (types.HierarchyLevelSpec, error) {
	if len(p.Levels) == 0 {
		return nil, types.ErrEmptyLevelSpec
	}
	spec := make(types.HierarchyLevelSpec, len(p.Levels))
	for i, group := range p.Levels {
		for _, expr := range group {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q at level %d: %w", expr, i, err)
			}
			spec[i] = append(spec[i], re)
		}
	}
	return spec, nil
}

// HierarchyStage groups sections under their headings
type HierarchyStage struct {
	params HierarchyParams
	joiner *chunker.ImageJoiner
	logger *zap.Logger
}

// NewHierarchyStage creates the stage
func NewHierarchyStage(params HierarchyParams, opts ...StageOption) *HierarchyStage {
	s := newStageSettings(opts)
	return &HierarchyStage{
		params: params,
		joiner: s.joiner,
		logger: s.logger.Named("hierarchy"),
	}
}

// Name implements Component
func (h *HierarchyStage) Name() string { return "hierarchy" }

// DefaultOutput implements Defaulter
func (h *HierarchyStage) DefaultOutput() (any, bool) {
	return h.params.ExceptionDefault, h.params.ExceptionDefault != nil
}

// Invoke implements Component
func (h *HierarchyStage) Invoke(ctx context.Context, inv *Invocation) error {
	spec, err := h.params.LevelSpec()
	if err != nil {
		return fmt.Errorf("invalid hierarchy parameters: %w", err)
	}

	b, err := chunker.NewHierarchyBuilder(spec, h.params.Hierarchy,
		chunker.WithLogger(h.logger),
		chunker.WithImageJoiner(h.joiner))
	if err != nil {
		return fmt.Errorf("invalid hierarchy parameters: %w", err)
	}

	sections, err := sectionsInput(inv.Inputs, true)
	if err != nil {
		return err
	}
	inv.Progress(0.1, fmt.Sprintf("Building hierarchy over %d lines", len(sections)))

	chunks, err := b.Build(ctx, sections)
	if err != nil {
		return err
	}
	inv.SetOutput(OutputChunks, chunks)
	return nil
}
