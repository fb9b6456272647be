package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/ragcore/pkg/types"
)

var (
	// tagPattern matches any embedded position tag, well-formed or not
	tagPattern = regexp.MustCompile(`@@[\t0-9.-]+?##`)

	// positionPattern matches tags that carry a page list and coordinates
	positionPattern = regexp.MustCompile(`@@[0-9-]+\t[0-9.\t]+##`)
)

// RemoveTag strips every embedded position tag from text
func RemoveTag(text string) string {
	return tagPattern.ReplaceAllString(text, "")
}

// ExtractPositions parses every position tag found in text, in order of
// appearance. Tags look like "@@<pages>\t<x0>\t<y0>\t<x1>\t<y1>##" where
// pages is a dash-separated list of one-based page numbers.
func ExtractPositions(text string) ([]types.Position, error) {
	tags := positionPattern.FindAllString(text, -1)
	if len(tags) == 0 {
		return nil, nil
	}

	positions := make([]types.Position, 0, len(tags))
	for _, tag := range tags {
		pos, err := parsePositionTag(tag)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// parsePositionTag decodes a single tag. Pages become zero-based.
func parsePositionTag(tag string) (types.Position, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(tag, "@@"), "##")
	fields := strings.Split(body, "\t")
	if len(fields) != 5 {
		return types.Position{}, fmt.Errorf("%w: %q has %d fields", types.ErrMalformedPosition, tag, len(fields))
	}

	var pos types.Position
	for _, p := range strings.Split(fields[0], "-") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return types.Position{}, fmt.Errorf("%w: bad page %q in %q", types.ErrMalformedPosition, p, tag)
		}
		pos.Pages = append(pos.Pages, n-1)
	}

	coords := []*float64{&pos.X0, &pos.Y0, &pos.X1, &pos.Y1}
	for i, c := range coords {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return types.Position{}, fmt.Errorf("%w: bad coordinate %q in %q", types.ErrMalformedPosition, fields[i+1], tag)
		}
		*c = v
	}
	return pos, nil
}

// positionSet collects positions for one chunk, dropping repeats of a tag
// already seen
type positionSet struct {
	seen      map[string]struct{}
	positions []types.Position
}

func newPositionSet() *positionSet {
	return &positionSet{seen: make(map[string]struct{})}
}

// add extracts every tag of each source string
func (s *positionSet) add(sources ...string) error {
	for _, src := range sources {
		for _, tag := range positionPattern.FindAllString(src, -1) {
			if _, ok := s.seen[tag]; ok {
				continue
			}
			pos, err := parsePositionTag(tag)
			if err != nil {
				return err
			}
			s.seen[tag] = struct{}{}
			s.positions = append(s.positions, pos)
		}
	}
	return nil
}

// tagSpans returns the byte ranges of every embedded tag in text
func tagSpans(text string) [][]int {
	return tagPattern.FindAllStringIndex(text, -1)
}
