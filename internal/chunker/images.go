package chunker

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/ragcore/internal/logging"
)

// DefaultImageConcurrency bounds concurrent per-chunk image tasks when no
// limiter is supplied
const DefaultImageConcurrency = 10

// ImageStore persists a chunk image and returns a reference to it
type ImageStore interface {
	Put(ctx context.Context, key string, img image.Image) (string, error)
}

// ImageJoiner stacks the images of each chunk vertically and optionally
// uploads the result. All chunks of one call succeed together or the call fails.
type ImageJoiner struct {
	sem    *semaphore.Weighted
	store  ImageStore
	retry  RetryConfig
	logger *zap.Logger
}

// JoinerOption configures an ImageJoiner
type JoinerOption func(*ImageJoiner)

// WithImageStore uploads every joined image to store
func WithImageStore(store ImageStore) JoinerOption {
	return func(j *ImageJoiner) { j.store = store }
}

// WithRetryConfig overrides the upload retry policy
func WithRetryConfig(cfg RetryConfig) JoinerOption {
	return func(j *ImageJoiner) { j.retry = cfg }
}

// WithJoinerLogger sets the logger
func WithJoinerLogger(l *zap.Logger) JoinerOption {
	return func(j *ImageJoiner) { j.logger = logging.OrNop(l).Named("images") }
}

// NewImageJoiner creates a joiner limited by sem. A nil sem gets a private
// limiter of DefaultImageConcurrency.
func NewImageJoiner(sem *semaphore.Weighted, opts ...JoinerOption) *ImageJoiner {
	if sem == nil {
		sem = semaphore.NewWeighted(DefaultImageConcurrency)
	}
	j := &ImageJoiner{
		sem:    sem,
		retry:  DefaultRetryConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// JoinResult is the joined image of one chunk and its store reference
type JoinResult struct {
	Image image.Image
	Ref   string
}

// Join concatenates each group of images concurrently. Empty groups yield a
// zero result. The first failing group cancels every other in-flight group.
func (j *ImageJoiner) Join(ctx context.Context, groups [][]image.Image) ([]JoinResult, error) {
	results := make([]JoinResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)

	for i, imgs := range groups {
		if len(imgs) == 0 {
			continue
		}
		if err := j.sem.Acquire(gctx, 1); err != nil {
			// The group context is done: a sibling failed or ctx expired
			break
		}

		g.Go(func() error {
			defer j.sem.Release(1)

			res, err := j.joinOne(gctx, imgs)
			if err != nil {
				return fmt.Errorf("failed to join images of chunk %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		j.logger.Error("image fan-out failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (j *ImageJoiner) joinOne(ctx context.Context, imgs []image.Image) (JoinResult, error) {
	img, err := ConcatVertical(ctx, imgs)
	if err != nil {
		return JoinResult{}, err
	}
	if img == nil {
		return JoinResult{}, nil
	}

	size := img.Bounds().Size()
	j.logger.Debug("joined chunk image",
		zap.Int("parts", len(imgs)),
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
		zap.String("size", humanize.Bytes(uint64(size.X*size.Y*4))))

	if j.store == nil {
		return JoinResult{Image: img}, nil
	}

	key := uuid.NewString()
	ref, err := retryWithBackoff(ctx, j.retry, func() (string, error) {
		return j.store.Put(ctx, key, img)
	})
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to store image %s: %w", key, err)
	}
	return JoinResult{Image: img, Ref: ref}, nil
}

// ConcatVertical stacks images top to bottom on a canvas as wide as the
// widest image. Nil entries are skipped and an image identical to the one
// before it is not repeated. It returns nil when nothing remains.
func ConcatVertical(ctx context.Context, imgs []image.Image) (image.Image, error) {
	parts := make([]image.Image, 0, len(imgs))
	for _, img := range imgs {
		if img == nil {
			continue
		}
		if n := len(parts); n > 0 && sameImage(parts[n-1], img) {
			continue
		}
		parts = append(parts, img)
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	}

	width, height := 0, 0
	for _, p := range parts {
		size := p.Bounds().Size()
		width = max(width, size.X)
		height += size.Y
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		draw.Copy(dst, image.Pt(0, y), p, p.Bounds(), draw.Src, nil)
		y += p.Bounds().Dy()
	}
	return dst, nil
}

// sameImage reports whether a and b hold identical pixels. Only the common
// in-memory image types are compared by content.
func sameImage(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	switch x := a.(type) {
	case *image.RGBA:
		y, ok := b.(*image.RGBA)
		return ok && x.Stride == y.Stride && bytes.Equal(x.Pix, y.Pix)
	case *image.NRGBA:
		y, ok := b.(*image.NRGBA)
		return ok && x.Stride == y.Stride && bytes.Equal(x.Pix, y.Pix)
	case *image.Gray:
		y, ok := b.(*image.Gray)
		return ok && x.Stride == y.Stride && bytes.Equal(x.Pix, y.Pix)
	}
	return false
}
