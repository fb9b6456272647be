package chunker

import (
	"context"
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
	"github.com/dshills/ragcore/pkg/types"
)

// Option configures a Splitter or a HierarchyBuilder
type Option func(*settings)

type settings struct {
	logger *zap.Logger
	joiner *ImageJoiner
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = logging.OrNop(l) }
}

// WithImageJoiner sets the joiner used for chunk images. Without one, a
// private joiner with default concurrency and no store is used.
func WithImageJoiner(j *ImageJoiner) Option {
	return func(s *settings) { s.joiner = j }
}

func newSettings(name string, opts []Option) settings {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	s.logger = s.logger.Named(name)
	if s.joiner == nil {
		s.joiner = NewImageJoiner(nil, WithJoinerLogger(s.logger))
	}
	return s
}

// draft is a chunk under assembly. Text is already tag-free.
type draft struct {
	text        strings.Builder
	tokens      int
	pieces      int
	lastSection int
	lastImage   int
	positions   *positionSet
	images      []image.Image
}

func newDraft() *draft {
	return &draft{lastSection: -1, lastImage: -1, positions: newPositionSet()}
}

// addImage records the image of a section once per draft
func (d *draft) addImage(section int, img image.Image) {
	if img == nil || d.lastImage == section {
		return
	}
	d.images = append(d.images, img)
	d.lastImage = section
}

// materialize turns drafts into chunks, joining their images concurrently
func materialize(ctx context.Context, joiner *ImageJoiner, drafts []*draft) ([]types.Chunk, error) {
	groups := make([][]image.Image, len(drafts))
	for i, d := range drafts {
		groups[i] = d.images
	}

	joined, err := joiner.Join(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to join chunk images: %w", err)
	}

	chunks := make([]types.Chunk, len(drafts))
	for i, d := range drafts {
		chunks[i] = types.Chunk{
			Text:      d.text.String(),
			Image:     joined[i].Image,
			ImageRef:  joined[i].Ref,
			Positions: d.positions.positions,
		}
	}
	return chunks, nil
}
