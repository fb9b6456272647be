package chunker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/pkg/types"
)

// ErrNoTokenCounter is returned when a splitter is built without a counter
var ErrNoTokenCounter = errors.New("token counter is required")

// TokenCounter counts the tokens of a piece of text
type TokenCounter interface {
	NumTokens(text string) int
}

// Splitter packs consecutive sections into chunks under a token budget
type Splitter struct {
	cfg     types.SplitterConfig
	counter TokenCounter
	joiner  *ImageJoiner
	logger  *zap.Logger
}

// NewSplitter validates cfg and creates a splitter. Delimiters are tried in
// the order given when a section has to be cut.
func NewSplitter(cfg types.SplitterConfig, counter TokenCounter, opts ...Option) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid splitter config: %w", err)
	}
	if counter == nil {
		return nil, ErrNoTokenCounter
	}

	s := newSettings("splitter", opts)
	return &Splitter{
		cfg:     cfg,
		counter: counter,
		joiner:  s.joiner,
		logger:  s.logger,
	}, nil
}

// SplitText splits plain text and returns the chunk texts
func (s *Splitter) SplitText(text string) ([]string, error) {
	drafts, err := s.assemble([]types.Section{{Text: text}})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(drafts))
	for i, d := range drafts {
		out[i] = d.text.String()
	}
	return out, nil
}

// SplitSections packs sections into chunks carrying their positions and the
// vertically joined images of every contributing section
func (s *Splitter) SplitSections(ctx context.Context, sections []types.Section) ([]types.Chunk, error) {
	drafts, err := s.assemble(sections)
	if err != nil {
		return nil, err
	}

	chunks, err := materialize(ctx, s.joiner, drafts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("split sections",
		zap.Int("sections", len(sections)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// assemble accumulates pieces into drafts. A piece opens a new draft when it
// would push a non-empty draft over budget. Sections in one draft are joined
// with a newline; pieces of one section are joined as they were.
func (s *Splitter) assemble(sections []types.Section) ([]*draft, error) {
	var (
		drafts []*draft
		cur    *draft
	)

	for i, sec := range sections {
		for _, piece := range s.pieces(sec.Text) {
			if piece == "" && sec.Image == nil {
				continue
			}
			clean := RemoveTag(piece)
			n := s.counter.NumTokens(clean)

			if cur == nil || (cur.pieces > 0 && cur.tokens+n > s.cfg.TokenBudget) {
				next := newDraft()
				if cur != nil && s.cfg.OverlapPercent > 0 {
					tail := overlapTail(cur.text.String(), s.cfg.OverlapPercent)
					next.text.WriteString(tail)
					next.tokens = s.counter.NumTokens(tail)
					next.lastSection = cur.lastSection
				}
				cur = next
				drafts = append(drafts, cur)
			}

			if cur.text.Len() > 0 && cur.lastSection != i {
				cur.text.WriteByte('\n')
			}
			cur.text.WriteString(clean)
			cur.tokens += n
			cur.pieces++
			cur.lastSection = i

			if err := cur.positions.add(sec.PositionTag, piece); err != nil {
				return nil, fmt.Errorf("%w: section %d: %w", types.ErrMalformedSection, i, err)
			}
			cur.addImage(i, sec.Image)
		}
	}
	return drafts, nil
}

// pieces cuts text until every piece fits the budget or no delimiter is left.
// A piece that still does not fit is returned whole.
func (s *Splitter) pieces(text string) []string {
	return s.cut(text, 0)
}

func (s *Splitter) cut(text string, level int) []string {
	if level >= len(s.cfg.Delimiters) || s.counter.NumTokens(RemoveTag(text)) <= s.cfg.TokenBudget {
		return []string{text}
	}

	parts := splitKeep(text, s.cfg.Delimiters[level])
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, s.cut(p, level+1)...)
	}
	return out
}

// overlapTail returns the trailing fraction of text, measured in runes
func overlapTail(text string, percent float64) string {
	runes := []rune(text)
	start := int(float64(len(runes)) * (1 - percent))
	start = min(max(start, 0), len(runes))
	return string(runes[start:])
}
