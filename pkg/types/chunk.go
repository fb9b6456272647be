package types

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"regexp"
)

// Section is one parsed region of a source document prior to chunk assembly
type Section struct {
	Text        string
	PositionTag string      // Zero or more "@@page\tx0\ty0\tx1\ty1##" segments
	Image       image.Image // Nullable - only structured input carries images
}

// Position is a page/bounding-box location extracted from a position tag.
// Pages are zero-based; coordinates keep the order they appear in the tag.
type Position struct {
	Pages []int
	X0    float64
	Y0    float64
	X1    float64
	Y1    float64
}

// MarshalJSON encodes the position as the [[pages...], x0, y0, x1, y1] tuple
// consumed by the downstream store
func (p Position) MarshalJSON() ([]byte, error) {
	pages := p.Pages
	if pages == nil {
		pages = []int{}
	}
	return json.Marshal([]interface{}{pages, p.X0, p.Y0, p.X1, p.Y1})
}

// UnmarshalJSON decodes the [[pages...], x0, y0, x1, y1] tuple
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 5 {
		return fmt.Errorf("position tuple must have 5 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Pages); err != nil {
		return fmt.Errorf("invalid position pages: %w", err)
	}
	coords := []*float64{&p.X0, &p.Y0, &p.X1, &p.Y1}
	for i, c := range coords {
		if err := json.Unmarshal(raw[i+1], c); err != nil {
			return fmt.Errorf("invalid position coordinate %d: %w", i, err)
		}
	}
	return nil
}

// Chunk is a retrievable unit produced by chunk assembly.
// Chunks are created at flatten time or from a splitter window and never mutated afterwards.
type Chunk struct {
	Text      string
	Image     image.Image // Nullable - concatenated image of contributing sections
	ImageRef  string      // Set when the image was handed to an ImageStore
	Positions []Position
}

// ContentHash computes the SHA-256 hash of the chunk text for deduplication
func (c *Chunk) ContentHash() [32]byte {
	return sha256.Sum256([]byte(c.Text))
}

// Validate checks if the chunk is valid
func (c *Chunk) Validate() error {
	if c.Text == "" && c.Image == nil && c.ImageRef == "" {
		return ErrEmptyContent
	}
	for _, p := range c.Positions {
		if len(p.Pages) == 0 {
			return errors.New("position must reference at least one page")
		}
	}
	return nil
}

// SplitterConfig controls token-budget chunk assembly
type SplitterConfig struct {
	TokenBudget    int
	Delimiters     []string // Ordered by priority
	OverlapPercent float64  // In [0, 1)
}

// Validate checks the splitter configuration
func (c SplitterConfig) Validate() error {
	if c.TokenBudget <= 0 {
		return ErrInvalidTokenBudget
	}
	if len(c.Delimiters) == 0 {
		return ErrEmptyDelimiters
	}
	if c.OverlapPercent < 0 || c.OverlapPercent >= 1 {
		return ErrInvalidOverlap
	}
	return nil
}

// HierarchyLevelSpec is an ordered list of pattern groups. A line's level is
// the index of the first group with a matching pattern.
type HierarchyLevelSpec [][]*regexp.Regexp

// LeafLevel is the sentinel level of lines that match no group
func (s HierarchyLevelSpec) LeafLevel() int {
	return len(s)
}
